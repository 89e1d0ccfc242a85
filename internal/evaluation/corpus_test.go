package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/models"
)

const validCorpus = `[
	{"id": "c1", "request": {"text": "find white sneakers"}, "expectedIntent": "search"},
	{"id": "c2", "request": {"text": "compare iphone and pixel"}, "expectedIntent": "compare",
	 "expectedProductIds": ["prod-1", "prod-2"]}
]`

func TestParseCorpusValid(t *testing.T) {
	cases, err := ParseCorpus([]byte(validCorpus))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "c1", cases[0].ID)
	assert.Equal(t, models.IntentSearch, cases[0].ExpectedIntent)
	assert.Equal(t, []string{"prod-1", "prod-2"}, cases[1].ExpectedProductIDs)
}

func TestParseCorpusAcceptsEveryIntentKind(t *testing.T) {
	for _, kind := range models.ValidIntentKinds {
		doc := `[{"id": "c1", "request": {"text": "x"}, "expectedIntent": "` + string(kind) + `"}]`
		cases, err := ParseCorpus([]byte(doc))
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, cases[0].ExpectedIntent)
	}
}

func TestParseCorpusRejectsUnknownIntent(t *testing.T) {
	_, err := ParseCorpus([]byte(`[{"id": "c1", "request": {"text": "x"}, "expectedIntent": "teleport"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violations")
}

func TestParseCorpusRejectsMissingID(t *testing.T) {
	_, err := ParseCorpus([]byte(`[{"request": {"text": "x"}, "expectedIntent": "search"}]`))
	assert.Error(t, err)
}

func TestParseCorpusRejectsEmptyArray(t *testing.T) {
	_, err := ParseCorpus([]byte(`[]`))
	assert.Error(t, err)
}

func TestParseCorpusRejectsDuplicateIDs(t *testing.T) {
	_, err := ParseCorpus([]byte(`[
		{"id": "c1", "request": {"text": "x"}, "expectedIntent": "search"},
		{"id": "c1", "request": {"text": "y"}, "expectedIntent": "search"}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate case id")
}

func TestLoadCorpusFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(validCorpus), 0o644))

	cases, err := LoadCorpus(path)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
