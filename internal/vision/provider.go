// Package vision orchestrates image analysis across multiple model
// providers with fallback and parallel-compare policies.
package vision

import (
	"context"

	"product-discovery/internal/models"
)

// Options carries per-call knobs passed through to the provider.
type Options struct {
	ImageFormat string
	Language    string
}

// Provider is a single vision-capable analyzer. Implementations return
// *errors.ProviderError with the kind set so the orchestrator can apply
// the right fallback policy.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, image []byte, opts Options) (*models.VisionAnalysisResult, error)
}
