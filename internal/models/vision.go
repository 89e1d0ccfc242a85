package models

// VisionAnalysisResult is one analyzer's reading of an image.
type VisionAnalysisResult struct {
	Provider      string   `json:"provider"`
	Category      string   `json:"category,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Description   string   `json:"description,omitempty"`
	SearchQueries []string `json:"searchQueries,omitempty"`
	Confidence    float64  `json:"confidence"`
	LatencyMs     float64  `json:"latencyMs"`
	CostUSD       float64  `json:"costUsd"`
}

// VisionOutcome bundles the canonical result with every raw analyzer
// result and, when at least two succeeded, their agreement score.
type VisionOutcome struct {
	Canonical      VisionAnalysisResult   `json:"canonical"`
	Raw            []VisionAnalysisResult `json:"raw"`
	AgreementScore *float64               `json:"agreementScore,omitempty"`
}
