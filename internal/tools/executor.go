package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/metrics"
	"product-discovery/internal/models"
)

// Executor fans tool calls out with bounded concurrency. A failing tool
// is recorded on its invocation and excluded from the merge; it never
// fails the query.
type Executor struct {
	cfg            *config.Config
	maxConcurrency int
	logger         logger.Logger
}

func NewExecutor(cfg *config.Config, log logger.Logger) *Executor {
	maxConcurrency := cfg.Pipeline.MaxToolConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Executor{
		cfg:            cfg,
		maxConcurrency: maxConcurrency,
		logger:         log.WithFields(map[string]interface{}{"stage": "tools"}),
	}
}

// Run executes every tool concurrently and returns the successful
// results plus one invocation record per tool, in dispatch order.
func (e *Executor) Run(ctx context.Context, selected []Tool, params Params) ([]Result, []models.ToolInvocation) {
	results := make([]*Result, len(selected))
	invocations := make([]models.ToolInvocation, len(selected))

	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup

	for i, tool := range selected {
		wg.Add(1)
		go func(idx int, t Tool) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx], invocations[idx] = e.runOne(ctx, t, params)
		}(i, tool)
	}
	wg.Wait()

	var out []Result
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, invocations
}

func (e *Executor) runOne(ctx context.Context, tool Tool, params Params) (*Result, models.ToolInvocation) {
	toolCfg := config.GetToolConfig(e.cfg, tool.Name())
	timeout := config.GetDuration(toolCfg.Timeout)

	start := time.Now()

	var result *Result
	var err error
	for attempt := 0; ; attempt++ {
		result, err = e.attempt(ctx, tool, params, timeout)
		if err == nil || ctx.Err() != nil || attempt >= retriesFor(err, toolCfg.MaxRetries) {
			break
		}
		e.logger.Warn("retrying tool", map[string]interface{}{
			"tool":    tool.Name(),
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	elapsed := time.Since(start)

	invocation := models.ToolInvocation{
		Tool:      tool.Name(),
		Params:    marshalInvocationParams(params),
		LatencyMs: float64(elapsed.Milliseconds()),
	}
	metrics.ToolDuration.WithLabelValues(tool.Name()).Observe(elapsed.Seconds())

	if err != nil {
		fields := map[string]interface{}{
			"tool":  tool.Name(),
			"error": err.Error(),
		}
		if stdErr, ok := err.(*errors.StandardError); ok {
			fields["category"] = errors.GetErrorCategory(stdErr.Code)
		}
		metrics.ToolExecutions.WithLabelValues(tool.Name(), "error").Inc()
		e.logger.Warn("tool execution failed", fields)
		invocation.Success = false
		invocation.Error = err.Error()
		return nil, invocation
	}

	metrics.ToolExecutions.WithLabelValues(tool.Name(), "success").Inc()
	invocation.Success = true
	if raw, merr := json.Marshal(result); merr == nil {
		invocation.Result = raw
	}
	return result, invocation
}

// attempt is one bounded execution. A per-tool deadline is reported as
// a tool timeout only when the parent context is still alive.
func (e *Executor) attempt(ctx context.Context, tool Tool, params Params, timeout time.Duration) (*Result, error) {
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := tool.Execute(toolCtx, params)
	if err != nil && toolCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = errors.NewToolTimeoutError(tool.Name())
	}
	return result, err
}

// retriesFor caps the code's retry budget with the tool's configured
// MaxRetries. Only typed retryable errors earn a retry; timeouts and
// plain errors fail immediately.
func retriesFor(err error, maxRetries int) int {
	stdErr, ok := err.(*errors.StandardError)
	if !ok || !errors.IsRetryableErrorCode(stdErr.Code) {
		return 0
	}
	retries := errors.GetRetryCount(stdErr.Code)
	if maxRetries < retries {
		retries = maxRetries
	}
	return retries
}

// marshalInvocationParams records the replayable slice of the params:
// the structured filters and candidates, not the raw media payloads.
func marshalInvocationParams(params Params) json.RawMessage {
	snapshot := struct {
		Text         string              `json:"text,omitempty"`
		Intent       models.IntentKind   `json:"intent"`
		Filters      models.QueryFilters `json:"filters"`
		Limit        int                 `json:"limit"`
		CandidateIDs []string            `json:"candidateIds,omitempty"`
	}{
		Intent:       params.Intent.Kind,
		Filters:      params.Intent.Filters,
		Limit:        params.Limit,
		CandidateIDs: params.CandidateIDs,
	}
	if params.Query != nil {
		snapshot.Text = params.Query.Text
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}
	return raw
}
