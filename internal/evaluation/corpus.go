// Package evaluation runs labeled query corpora through the pipeline
// and scores intent accuracy, retrieval quality, latency and cost
// against release thresholds.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"product-discovery/internal/models"
)

// Case is one labeled evaluation query.
type Case struct {
	ID                 string            `json:"id"`
	Description        string            `json:"description,omitempty"`
	Request            models.Request    `json:"request"`
	ExpectedIntent     models.IntentKind `json:"expectedIntent"`
	ExpectedProductIDs []string          `json:"expectedProductIds,omitempty"`
}

// corpusSchema guards the corpus files against silent label drift: a
// malformed corpus fails loudly before any query runs. The intent enum
// is built from models.ValidIntentKinds so a new kind cannot silently
// diverge from the labels the corpus accepts.
const corpusSchemaTemplate = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["id", "request", "expectedIntent"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"request": {
				"type": "object",
				"properties": {
					"text": {"type": "string"},
					"imageData": {"type": "string"},
					"imageFormat": {"type": "string"},
					"audioData": {"type": "string"},
					"audioFormat": {"type": "string"},
					"maxResults": {"type": "integer", "minimum": 0},
					"sessionId": {"type": "string"}
				}
			},
			"expectedIntent": {
				"type": "string",
				"enum": [%s]
			},
			"expectedProductIds": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}
}`

func corpusSchema() string {
	kinds := make([]string, len(models.ValidIntentKinds))
	for i, kind := range models.ValidIntentKinds {
		kinds[i] = fmt.Sprintf("%q", string(kind))
	}
	return fmt.Sprintf(corpusSchemaTemplate, strings.Join(kinds, ", "))
}

// LoadCorpus reads and validates a corpus file.
func LoadCorpus(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return ParseCorpus(raw)
}

// ParseCorpus validates the raw corpus document against the schema and
// decodes it.
func ParseCorpus(raw []byte) ([]Case, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(corpusSchema()),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validating corpus: %w", err)
	}
	if !result.Valid() {
		msg := "corpus schema violations:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf(" %s;", desc.String())
		}
		return nil, fmt.Errorf("%s", msg)
	}

	var cases []Case
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("decoding corpus: %w", err)
	}

	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate case id %q", c.ID)
		}
		seen[c.ID] = true
	}

	return cases, nil
}
