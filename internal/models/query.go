package models

import "time"

// Modality is one of the input channels a request may carry.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// IntentKind is the classified purpose of a query.
type IntentKind string

const (
	IntentSearch    IntentKind = "search"
	IntentCompare   IntentKind = "compare"
	IntentRecommend IntentKind = "recommend"
	IntentPurchase  IntentKind = "purchase"
	IntentClarify   IntentKind = "clarify"
	IntentUnknown   IntentKind = "unknown"
)

// ValidIntentKinds lists every kind the classifier may emit.
var ValidIntentKinds = []IntentKind{
	IntentSearch, IntentCompare, IntentRecommend,
	IntentPurchase, IntentClarify, IntentUnknown,
}

// QueryFilters are the structured constraints extracted from a query or
// carried in the request. Zero values mean "unset" so conversation
// folding can tell an explicit filter from an absent one.
type QueryFilters struct {
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Color    string   `json:"color,omitempty"`
	PriceMin *float64 `json:"priceMin,omitempty"`
	PriceMax *float64 `json:"priceMax,omitempty"`
}

// IsEmpty reports whether no filter field is set.
func (f QueryFilters) IsEmpty() bool {
	return f.Category == "" && f.Brand == "" && f.Color == "" &&
		f.PriceMin == nil && f.PriceMax == nil
}

// Merge overlays the receiver with every field set in other,
// most-recent-wins. Unset fields in other keep the receiver's value.
func (f QueryFilters) Merge(other QueryFilters) QueryFilters {
	out := f
	if other.Category != "" {
		out.Category = other.Category
	}
	if other.Brand != "" {
		out.Brand = other.Brand
	}
	if other.Color != "" {
		out.Color = other.Color
	}
	if other.PriceMin != nil {
		out.PriceMin = other.PriceMin
	}
	if other.PriceMax != nil {
		out.PriceMax = other.PriceMax
	}
	return out
}

// Request is the raw multimodal payload accepted at the pipeline edge.
type Request struct {
	Text        string                 `json:"text,omitempty"`
	ImageData   []byte                 `json:"imageData,omitempty"`
	ImageFormat string                 `json:"imageFormat,omitempty"`
	AudioData   []byte                 `json:"audioData,omitempty"`
	AudioFormat string                 `json:"audioFormat,omitempty"`
	MaxResults  int                    `json:"maxResults,omitempty"`
	Filters     *QueryFilters          `json:"filters,omitempty"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Query is the canonical, validated form of a request. Immutable once
// created; downstream stages reference it by ID and never mutate it.
type Query struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Modalities  []Modality    `json:"modalities"`
	Text        string        `json:"text,omitempty"`
	ImageData   []byte        `json:"-"`
	ImageFormat string        `json:"imageFormat,omitempty"`
	AudioData   []byte        `json:"-"`
	AudioFormat string        `json:"audioFormat,omitempty"`
	MaxResults  int           `json:"maxResults"`
	Filters     *QueryFilters `json:"filters,omitempty"`
	SessionID   string        `json:"sessionId"`
}

// HasModality reports whether the query carries the given channel.
func (q *Query) HasModality(m Modality) bool {
	for _, mod := range q.Modalities {
		if mod == m {
			return true
		}
	}
	return false
}

// Intent is the fused classification result for one query.
type Intent struct {
	Kind       IntentKind   `json:"kind"`
	Confidence float64      `json:"confidence"`
	Filters    QueryFilters `json:"filters"`
	Source     string       `json:"source,omitempty"` // text, voice, vision, context
}

// Response is the structured user-facing result of one pipeline run.
type Response struct {
	QueryID            string          `json:"queryId"`
	Intent             IntentKind      `json:"intent"`
	IntentConfidence   float64         `json:"intentConfidence"`
	Message            string          `json:"message"`
	Products           []RankedProduct `json:"products"`
	Comparison         *Comparison     `json:"comparison,omitempty"`
	SuggestedFollowups []string        `json:"suggestedFollowups,omitempty"`
	LatencyMs          float64         `json:"latencyMs"`
	LatencyBreakdown   map[string]float64 `json:"latencyBreakdown,omitempty"`
	CostUSD            float64         `json:"costUsd"`
	Degraded           bool            `json:"degraded"`
	Timestamp          time.Time       `json:"timestamp"`
}
