package vision

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/metrics"
	"product-discovery/internal/models"
)

const (
	PolicyFallback = "fallback"
	PolicyParallel = "parallel"
)

type Orchestrator struct {
	providers []Provider
	cfg       config.ProviderChainConfig
	weights   config.AgreementWeights
	logger    logger.Logger
}

func NewOrchestrator(providers []Provider, cfg config.ProviderChainConfig, weights config.AgreementWeights, log logger.Logger) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, errors.NewConfigurationError("vision orchestrator requires at least one provider")
	}
	return &Orchestrator{
		providers: providers,
		cfg:       cfg,
		weights:   weights,
		logger:    log.WithFields(map[string]interface{}{"stage": "vision"}),
	}, nil
}

// Analyze runs the configured provider chain over the image. Under the
// fallback policy providers are tried in order; under the parallel
// policy all providers run at once and the highest-confidence result
// becomes canonical. The agreement score is attached only when at least
// two providers succeeded.
func (o *Orchestrator) Analyze(ctx context.Context, image []byte, opts Options) (*models.VisionOutcome, error) {
	switch o.cfg.Policy {
	case PolicyParallel:
		return o.analyzeParallel(ctx, image, opts)
	default:
		return o.analyzeFallback(ctx, image, opts)
	}
}

func (o *Orchestrator) analyzeFallback(ctx context.Context, image []byte, opts Options) (*models.VisionOutcome, error) {
	var lastErr error

	for _, provider := range o.providers {
		result, err := o.callProvider(ctx, provider, image, opts)
		if err == nil {
			return &models.VisionOutcome{
				Canonical: *result,
				Raw:       []models.VisionAnalysisResult{*result},
			}, nil
		}

		if pe, ok := errors.AsProviderError(err); ok && pe.IsFatal() {
			// Auth errors never trigger fallback, the whole chain shares
			// the credential problem surface.
			return nil, err
		}

		o.logger.Warn("provider failed, trying next", map[string]interface{}{
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		lastErr = err
	}

	return nil, fmt.Errorf("%s: %w", errors.ErrCodeAllProvidersFailed, lastErr)
}

func (o *Orchestrator) analyzeParallel(ctx context.Context, image []byte, opts Options) (*models.VisionOutcome, error) {
	type outcome struct {
		result *models.VisionAnalysisResult
		err    error
	}

	outcomes := make([]outcome, len(o.providers))
	var wg sync.WaitGroup

	for i, provider := range o.providers {
		wg.Add(1)
		go func(idx int, p Provider) {
			defer wg.Done()
			result, err := o.callProvider(ctx, p, image, opts)
			outcomes[idx] = outcome{result: result, err: err}
		}(i, provider)
	}
	wg.Wait()

	var results []models.VisionAnalysisResult
	var lastErr error
	for i, oc := range outcomes {
		if oc.err != nil {
			if pe, ok := errors.AsProviderError(oc.err); ok && pe.IsFatal() {
				return nil, oc.err
			}
			o.logger.Warn("parallel provider failed", map[string]interface{}{
				"provider": o.providers[i].Name(),
				"error":    oc.err.Error(),
			})
			lastErr = oc.err
			continue
		}
		results = append(results, *oc.result)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", errors.ErrCodeAllProvidersFailed, lastErr)
	}

	canonical := results[0]
	for _, r := range results[1:] {
		if r.Confidence > canonical.Confidence {
			canonical = r
		}
	}

	out := &models.VisionOutcome{
		Canonical: canonical,
		Raw:       results,
	}

	if len(results) >= 2 {
		score := o.agreementScore(results[0], results[1])
		out.AgreementScore = &score
	}

	return out, nil
}

// callProvider applies the per-call timeout and the retry-once policy
// for invalid responses.
func (o *Orchestrator) callProvider(ctx context.Context, provider Provider, image []byte, opts Options) (*models.VisionAnalysisResult, error) {
	timeout := config.GetDuration(o.cfg.Timeout)

	attempt := func() (*models.VisionAnalysisResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		result, err := provider.Analyze(callCtx, image, opts)
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(provider.Name(), "error").Inc()
			return nil, err
		}
		result.LatencyMs = float64(time.Since(start).Milliseconds())
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "success").Inc()
		return result, nil
	}

	result, err := attempt()
	if err == nil {
		return result, nil
	}

	if pe, ok := errors.AsProviderError(err); ok && pe.RetrySameProvider() {
		o.logger.Warn("invalid provider response, retrying once", map[string]interface{}{
			"provider": provider.Name(),
		})
		return attempt()
	}

	return nil, err
}

// AgreementScore exposes the weighted field overlap for evaluation use.
func (o *Orchestrator) AgreementScore(a, b models.VisionAnalysisResult) float64 {
	return o.agreementScore(a, b)
}

// agreementScore computes the weighted overlap of category, brand and
// color fields, normalized to [0,1]. Weights for fields absent on both
// sides are dropped and the remainder renormalized.
func (o *Orchestrator) agreementScore(a, b models.VisionAnalysisResult) float64 {
	total := 0.0
	score := 0.0

	if a.Category != "" || b.Category != "" {
		total += o.weights.Category
		if strings.EqualFold(a.Category, b.Category) {
			score += o.weights.Category
		}
	}

	if a.Brand != "" || b.Brand != "" {
		total += o.weights.Brand
		if a.Brand != "" && b.Brand != "" && strings.EqualFold(a.Brand, b.Brand) {
			score += o.weights.Brand
		}
	}

	if len(a.Colors) > 0 || len(b.Colors) > 0 {
		total += o.weights.Color
		score += o.weights.Color * colorOverlap(a.Colors, b.Colors)
	}

	if total == 0 {
		return 0
	}
	return score / total
}

func colorOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(a))
	for _, c := range a {
		setA[strings.ToLower(c)] = true
	}

	common := 0
	seen := make(map[string]bool, len(b))
	for _, c := range b {
		lc := strings.ToLower(c)
		if seen[lc] {
			continue
		}
		seen[lc] = true
		if setA[lc] {
			common++
		}
	}

	max := len(setA)
	if len(seen) > max {
		max = len(seen)
	}
	return float64(common) / float64(max)
}
