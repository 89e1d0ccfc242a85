package speech

import (
	"regexp"
	"strings"

	"product-discovery/internal/models"
)

// Shopping phrasings that map a transcript onto an intent hint. Price
// and availability questions collapse onto compare/search since those
// pipelines answer them.
var hintRules = []struct {
	kind     models.IntentKind
	keywords []string
}{
	{models.IntentPurchase, []string{"buy", "order", "purchase", "add to cart", "checkout"}},
	{models.IntentCompare, []string{"compare", "versus", " vs ", "difference between", "how much", "price of", "what does it cost", "cheaper"}},
	{models.IntentRecommend, []string{"recommend", "suggest", "what should i", "best option", "something like"}},
	{models.IntentSearch, []string{"in stock", "available", "do you have", "find", "show me", "looking for", "search"}},
}

var budgetPattern = regexp.MustCompile(`(?i)(?:under|below|less than|max(?:imum)?(?: of)?)\s*\$?\s*(\d+(?:\.\d+)?)`)

// ExtractCommand turns a raw transcript into the voice signal consumed
// by the intent classifier. Extraction is rule-based; an unmatched
// transcript still carries its text forward with no hint.
func ExtractCommand(transcript *models.Transcript) *models.VoiceCommand {
	cmd := &models.VoiceCommand{
		Text:       transcript.Text,
		Confidence: transcript.Confidence,
		Transcript: *transcript,
	}

	lower := " " + strings.ToLower(transcript.Text) + " "
	for _, rule := range hintRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				cmd.IntentHint = string(rule.kind)
				break
			}
		}
		if cmd.IntentHint != "" {
			break
		}
	}

	if m := budgetPattern.FindStringSubmatch(transcript.Text); m != nil {
		cmd.Entities = map[string]string{"budget": m[1]}
	}

	return cmd
}
