// Package intent fuses text, voice, vision and conversation signals
// into a single classified intent with structured filters.
package intent

import (
	"strings"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// Signals are the per-modality inputs available for one query. Any of
// them may be absent; precedence is text > voice hint > vision >
// conversation context.
type Signals struct {
	Text        string
	Voice       *models.VoiceCommand
	Vision      *models.VisionOutcome
	Context     models.QueryFilters
	PriorIntent models.IntentKind
}

type Classifier struct {
	threshold float64
	logger    logger.Logger
}

func NewClassifier(threshold float64, log logger.Logger) *Classifier {
	return &Classifier{
		threshold: threshold,
		logger:    log.WithFields(map[string]interface{}{"stage": "intent"}),
	}
}

// Threshold returns the clarification cutoff the classifier applies.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Rule-based keyword families per intent. Strong verbs score higher
// than weaker contextual phrasings.
var textRules = []struct {
	kind       models.IntentKind
	confidence float64
	keywords   []string
}{
	{models.IntentPurchase, 0.95, []string{"buy", "purchase", "order", "add to cart", "checkout"}},
	{models.IntentCompare, 0.9, []string{"compare", "versus", " vs ", "difference between", "which is better"}},
	{models.IntentRecommend, 0.9, []string{"recommend", "suggest", "what should i", "best option for", "something for"}},
	{models.IntentCompare, 0.75, []string{"how much", "price of", "what does it cost", "cheaper", "cheapest"}},
	{models.IntentSearch, 0.85, []string{"find", "search", "show me", "looking for", "i want", "i need", "do you have"}},
	{models.IntentSearch, 0.7, []string{"in stock", "available"}},
}

// Classify fuses the signals into one intent. A fused confidence below
// the threshold forces clarify so no tools are dispatched on a guess.
func (c *Classifier) Classify(query *models.Query, sig Signals) models.Intent {
	result := c.fuse(query, sig)

	if result.Kind != models.IntentClarify && result.Confidence < c.threshold {
		c.logger.Debug("confidence below threshold, forcing clarify", map[string]interface{}{
			"queryId":    query.ID,
			"kind":       result.Kind,
			"confidence": result.Confidence,
		})
		result.Kind = models.IntentClarify
	}

	result.Filters = c.collectFilters(query, sig)
	return result
}

func (c *Classifier) fuse(query *models.Query, sig Signals) models.Intent {
	text := strings.TrimSpace(sig.Text)
	if text == "" && sig.Voice != nil {
		text = sig.Voice.Text
	}

	if text != "" {
		if kind, confidence, ok := classifyText(text); ok {
			return models.Intent{Kind: kind, Confidence: confidence, Source: "text"}
		}
	}

	if sig.Voice != nil && sig.Voice.IntentHint != "" {
		confidence := 0.6 + 0.2*sig.Voice.Confidence
		return models.Intent{
			Kind:       models.IntentKind(sig.Voice.IntentHint),
			Confidence: confidence,
			Source:     "voice",
		}
	}

	// An image with no verbal framing is a visual search.
	if sig.Vision != nil {
		confidence := 0.5 + 0.35*sig.Vision.Canonical.Confidence
		return models.Intent{Kind: models.IntentSearch, Confidence: confidence, Source: "vision"}
	}

	if sig.PriorIntent != "" && sig.PriorIntent != models.IntentUnknown && sig.PriorIntent != models.IntentClarify {
		return models.Intent{Kind: sig.PriorIntent, Confidence: 0.55, Source: "context"}
	}

	if text != "" {
		// Free text that matched nothing still reads as a search query.
		return models.Intent{Kind: models.IntentSearch, Confidence: 0.5, Source: "text"}
	}

	return models.Intent{Kind: models.IntentUnknown, Confidence: 0.3, Source: "none"}
}

func classifyText(text string) (models.IntentKind, float64, bool) {
	lower := " " + strings.ToLower(text) + " "
	for _, rule := range textRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind, rule.confidence, true
			}
		}
	}
	return "", 0, false
}

// collectFilters layers filter sources from least to most specific:
// conversation context, vision attributes, voice entities, text
// extraction, then the request's explicit filters.
func (c *Classifier) collectFilters(query *models.Query, sig Signals) models.QueryFilters {
	filters := sig.Context

	if sig.Vision != nil {
		v := sig.Vision.Canonical
		visionFilters := models.QueryFilters{
			Category: v.Category,
			Brand:    strings.ToLower(v.Brand),
		}
		if len(v.Colors) > 0 {
			visionFilters.Color = v.Colors[0]
		}
		filters = filters.Merge(visionFilters)
	}

	if sig.Voice != nil {
		filters = filters.Merge(ExtractFilters(sig.Voice.Text))
		if budget, ok := sig.Voice.Entities["budget"]; ok {
			filters = filters.Merge(ExtractFilters("under $" + budget))
		}
	}

	if sig.Text != "" {
		filters = filters.Merge(ExtractFilters(sig.Text))
	}

	if query.Filters != nil {
		filters = filters.Merge(*query.Filters)
	}

	return filters
}
