// Package speech orchestrates audio transcription across multiple
// providers and extracts shopping voice commands from transcripts.
package speech

import (
	"context"

	"product-discovery/internal/models"
)

// Options carries per-call knobs passed through to the transcriber.
type Options struct {
	AudioFormat string
	Language    string
}

// Provider is a single transcription backend. Implementations return
// *errors.ProviderError with the kind set so the orchestrator can apply
// the right fallback policy.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, opts Options) (*models.Transcript, error)
}
