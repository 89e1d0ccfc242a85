package models

// Transcript is one transcription provider's reading of an audio clip.
type Transcript struct {
	Provider   string  `json:"provider"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	LatencyMs  float64 `json:"latencyMs"`
	CostUSD    float64 `json:"costUsd"`
}

// VoiceCommand is the fused post-transcription signal fed into the
// intent classifier.
type VoiceCommand struct {
	Text       string            `json:"text"`
	IntentHint string            `json:"intentHint,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
	Transcript Transcript        `json:"transcript"`
}
