package speech

import (
	"context"
	"fmt"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/metrics"
	"product-discovery/internal/models"
)

type Orchestrator struct {
	providers []Provider
	cfg       config.ProviderChainConfig
	logger    logger.Logger
}

func NewOrchestrator(providers []Provider, cfg config.ProviderChainConfig, log logger.Logger) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, errors.NewConfigurationError("speech orchestrator requires at least one provider")
	}
	return &Orchestrator{
		providers: providers,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"stage": "speech"}),
	}, nil
}

// Transcribe runs the provider chain in order until one succeeds.
// Auth failures abort the chain; invalid responses get one retry on the
// same provider; anything else falls through to the next provider.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, opts Options) (*models.Transcript, error) {
	var lastErr error

	for _, provider := range o.providers {
		transcript, err := o.callProvider(ctx, provider, audio, opts)
		if err == nil {
			return transcript, nil
		}

		if pe, ok := errors.AsProviderError(err); ok && pe.IsFatal() {
			return nil, err
		}

		o.logger.Warn("transcription provider failed, trying next", map[string]interface{}{
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		lastErr = err
	}

	return nil, fmt.Errorf("%s: %w", errors.ErrCodeAllProvidersFailed, lastErr)
}

func (o *Orchestrator) callProvider(ctx context.Context, provider Provider, audio []byte, opts Options) (*models.Transcript, error) {
	timeout := config.GetDuration(o.cfg.Timeout)

	attempt := func() (*models.Transcript, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		transcript, err := provider.Transcribe(callCtx, audio, opts)
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(provider.Name(), "error").Inc()
			return nil, err
		}
		transcript.LatencyMs = float64(time.Since(start).Milliseconds())
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "success").Inc()
		return transcript, nil
	}

	transcript, err := attempt()
	if err == nil {
		return transcript, nil
	}

	if pe, ok := errors.AsProviderError(err); ok && pe.RetrySameProvider() {
		o.logger.Warn("invalid transcription response, retrying once", map[string]interface{}{
			"provider": provider.Name(),
		})
		return attempt()
	}

	return nil, err
}
