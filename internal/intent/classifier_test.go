package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

func newClassifier(t *testing.T) *Classifier {
	return NewClassifier(0.5, logger.NewTestLogger(t))
}

func textQuery(text string) *models.Query {
	return &models.Query{ID: "q1", Text: text, Modalities: []models.Modality{models.ModalityText}}
}

func TestClassifyTextIntents(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name     string
		text     string
		expected models.IntentKind
	}{
		{"explicit search", "find me red running shoes", models.IntentSearch},
		{"comparison", "compare the iphone 15 and pixel 9", models.IntentCompare},
		{"price question maps to compare", "how much are bose headphones", models.IntentCompare},
		{"recommendation", "recommend a laptop for travel", models.IntentRecommend},
		{"purchase", "buy the black sony headphones", models.IntentPurchase},
		{"availability maps to search", "is the macbook air available", models.IntentSearch},
		{"unmatched free text defaults to search", "waterproof trail gear for autumn", models.IntentSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := c.Classify(textQuery(tt.text), Signals{Text: tt.text})
			assert.Equal(t, tt.expected, intent.Kind)
			assert.Equal(t, "text", intent.Source)
			assert.GreaterOrEqual(t, intent.Confidence, 0.5)
		})
	}
}

func TestClassifyBelowThresholdForcesClarify(t *testing.T) {
	c := NewClassifier(0.6, logger.NewTestLogger(t))

	// Unmatched free text scores 0.5, under the 0.6 threshold.
	intent := c.Classify(textQuery("hmm"), Signals{Text: "hmm"})
	assert.Equal(t, models.IntentClarify, intent.Kind)
	assert.Less(t, intent.Confidence, 0.6)
}

func TestClassifyAtThresholdStaysSearch(t *testing.T) {
	c := newClassifier(t)

	// Unmatched free text scores exactly the default threshold; only a
	// confidence strictly below it forces clarify.
	intent := c.Classify(textQuery("hmm"), Signals{Text: "hmm"})
	assert.Equal(t, models.IntentSearch, intent.Kind)
	assert.InDelta(t, 0.5, intent.Confidence, 1e-9)
}

func TestClassifyVoiceHintUsedWhenTextInconclusive(t *testing.T) {
	c := newClassifier(t)

	voice := &models.VoiceCommand{
		Text:       "the sony ones please",
		IntentHint: string(models.IntentCompare),
		Confidence: 0.9,
	}
	q := &models.Query{ID: "q1", Modalities: []models.Modality{models.ModalityAudio}}

	intent := c.Classify(q, Signals{Voice: voice})
	assert.Equal(t, models.IntentCompare, intent.Kind)
	assert.Equal(t, "voice", intent.Source)
}

func TestClassifyImageOnlyIsVisualSearch(t *testing.T) {
	c := newClassifier(t)

	vision := &models.VisionOutcome{
		Canonical: models.VisionAnalysisResult{
			Category:   "shoes",
			Brand:      "Nike",
			Colors:     []string{"white", "red"},
			Confidence: 0.9,
		},
	}
	q := &models.Query{ID: "q1", Modalities: []models.Modality{models.ModalityImage}}

	intent := c.Classify(q, Signals{Vision: vision})
	assert.Equal(t, models.IntentSearch, intent.Kind)
	assert.Equal(t, "vision", intent.Source)
	assert.Equal(t, "shoes", intent.Filters.Category)
	assert.Equal(t, "nike", intent.Filters.Brand)
	assert.Equal(t, "white", intent.Filters.Color)
}

func TestClassifyContextCarriesPriorIntent(t *testing.T) {
	c := newClassifier(t)

	q := &models.Query{ID: "q1", Modalities: []models.Modality{models.ModalityText}}
	intent := c.Classify(q, Signals{PriorIntent: models.IntentRecommend})
	assert.Equal(t, models.IntentRecommend, intent.Kind)
	assert.Equal(t, "context", intent.Source)
}

func TestClassifyNoSignalsIsUnknown(t *testing.T) {
	c := NewClassifier(0.2, logger.NewTestLogger(t))

	q := &models.Query{ID: "q1"}
	intent := c.Classify(q, Signals{})
	assert.Equal(t, models.IntentUnknown, intent.Kind)
}

func TestTextOverridesVoiceHint(t *testing.T) {
	c := newClassifier(t)

	voice := &models.VoiceCommand{IntentHint: string(models.IntentPurchase), Confidence: 0.9}
	intent := c.Classify(textQuery("compare these two laptops"), Signals{
		Text:  "compare these two laptops",
		Voice: voice,
	})
	assert.Equal(t, models.IntentCompare, intent.Kind)
	assert.Equal(t, "text", intent.Source)
}

func TestFilterLayeringMostSpecificWins(t *testing.T) {
	c := newClassifier(t)

	vision := &models.VisionOutcome{
		Canonical: models.VisionAnalysisResult{Category: "shoes", Brand: "Adidas", Confidence: 0.8},
	}
	explicit := &models.QueryFilters{Brand: "nike"}
	q := &models.Query{ID: "q1", Text: "find white sneakers under $120", Filters: explicit}

	intent := c.Classify(q, Signals{
		Text:    q.Text,
		Vision:  vision,
		Context: models.QueryFilters{Category: "jacket", Color: "black"},
	})

	// Vision overrides context category; text extracts color and price;
	// the explicit request filter wins the brand.
	assert.Equal(t, "shoes", intent.Filters.Category)
	assert.Equal(t, "white", intent.Filters.Color)
	assert.Equal(t, "nike", intent.Filters.Brand)
	if assert.NotNil(t, intent.Filters.PriceMax) {
		assert.InDelta(t, 120, *intent.Filters.PriceMax, 1e-9)
	}
}
