package tools

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

type stubTool struct {
	name     string
	kinds    []models.IntentKind
	delay    time.Duration
	err      error
	failures int // when > 0, only the first N calls return err
	calls    int32
	result   *Result
	running  *int32
	peak     *int32
}

func (s *stubTool) Name() string { return s.name }

func (s *stubTool) CanHandle(kind models.IntentKind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *stubTool) Execute(ctx context.Context, params Params) (*Result, error) {
	call := atomic.AddInt32(&s.calls, 1)

	if s.running != nil {
		now := atomic.AddInt32(s.running, 1)
		for {
			peak := atomic.LoadInt32(s.peak)
			if now <= peak || atomic.CompareAndSwapInt32(s.peak, peak, now) {
				break
			}
		}
		defer atomic.AddInt32(s.running, -1)
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil && (s.failures == 0 || int(call) <= s.failures) {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &Result{Tool: s.name}, nil
}

func executorConfig(concurrency int, toolTimeoutMs int) *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{MaxToolConcurrency: concurrency},
		Tools: map[string]config.ToolConfig{
			"slow": {Enabled: true, Timeout: toolTimeoutMs},
		},
	}
}

func searchParams() Params {
	return Params{
		Query:  &models.Query{ID: "q1", Text: "red shoes"},
		Intent: models.Intent{Kind: models.IntentSearch},
		Limit:  5,
	}
}

func TestExecutorRunsAllToolsAndRecordsInvocations(t *testing.T) {
	e := NewExecutor(executorConfig(4, 5000), logger.NewTestLogger(t))

	selected := []Tool{
		&stubTool{name: "one", result: &Result{Tool: "one", Products: []models.RankedProduct{{Product: models.Product{ID: "a"}, Score: 1}}}},
		&stubTool{name: "two"},
	}

	results, invocations := e.Run(context.Background(), selected, searchParams())
	assert.Len(t, results, 2)
	require.Len(t, invocations, 2)
	assert.Equal(t, "one", invocations[0].Tool)
	assert.True(t, invocations[0].Success)
	assert.NotEmpty(t, invocations[0].Result)
	assert.True(t, invocations[1].Success)
}

func TestExecutorIsolatesToolFailures(t *testing.T) {
	e := NewExecutor(executorConfig(4, 5000), logger.NewTestLogger(t))

	selected := []Tool{
		&stubTool{name: "broken", err: fmt.Errorf("backend exploded")},
		&stubTool{name: "healthy", result: &Result{Tool: "healthy"}},
	}

	results, invocations := e.Run(context.Background(), selected, searchParams())
	require.Len(t, results, 1)
	assert.Equal(t, "healthy", results[0].Tool)

	require.Len(t, invocations, 2)
	assert.False(t, invocations[0].Success)
	assert.Contains(t, invocations[0].Error, "backend exploded")
	assert.GreaterOrEqual(t, invocations[0].LatencyMs, 0.0)
}

func TestExecutorEnforcesPerToolTimeout(t *testing.T) {
	e := NewExecutor(executorConfig(4, 50), logger.NewTestLogger(t))

	selected := []Tool{&stubTool{name: "slow", delay: 500 * time.Millisecond}}

	results, invocations := e.Run(context.Background(), selected, searchParams())
	assert.Empty(t, results)
	require.Len(t, invocations, 1)
	assert.False(t, invocations[0].Success)
	assert.Contains(t, invocations[0].Error, "slow")
}

func TestExecutorRetriesRetryableFailureOnce(t *testing.T) {
	cfg := executorConfig(4, 5000)
	cfg.Tools["flaky"] = config.ToolConfig{Enabled: true, Timeout: 5000, MaxRetries: 1}

	flaky := &stubTool{
		name:     "flaky",
		err:      errors.NewSearchQueryFailedError(fmt.Errorf("shard down")),
		failures: 1,
		result:   &Result{Tool: "flaky"},
	}

	e := NewExecutor(cfg, logger.NewTestLogger(t))
	results, invocations := e.Run(context.Background(), []Tool{flaky}, searchParams())

	require.Len(t, results, 1)
	require.Len(t, invocations, 1)
	assert.True(t, invocations[0].Success)
	assert.Equal(t, int32(2), atomic.LoadInt32(&flaky.calls))
}

func TestExecutorDoesNotRetryNonRetryableFailure(t *testing.T) {
	cfg := executorConfig(4, 5000)
	cfg.Tools["strict"] = config.ToolConfig{Enabled: true, Timeout: 5000, MaxRetries: 3}

	strict := &stubTool{
		name: "strict",
		err:  errors.NewProductNotFoundError("prod-9"),
	}

	e := NewExecutor(cfg, logger.NewTestLogger(t))
	results, invocations := e.Run(context.Background(), []Tool{strict}, searchParams())

	assert.Empty(t, results)
	require.Len(t, invocations, 1)
	assert.False(t, invocations[0].Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&strict.calls))
}

func TestExecutorBoundsConcurrency(t *testing.T) {
	e := NewExecutor(executorConfig(2, 5000), logger.NewTestLogger(t))

	var running, peak int32
	var selected []Tool
	for i := 0; i < 6; i++ {
		selected = append(selected, &stubTool{
			name:    fmt.Sprintf("tool-%d", i),
			delay:   30 * time.Millisecond,
			running: &running,
			peak:    &peak,
		})
	}

	results, _ := e.Run(context.Background(), selected, searchParams())
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
