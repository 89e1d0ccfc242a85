package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// RunFunc is the pipeline under evaluation. The harness treats it as
// opaque so candidate and baseline builds evaluate identically.
type RunFunc func(ctx context.Context, req *models.Request) (*models.Response, error)

// CaseResult is the per-case outcome.
type CaseResult struct {
	CaseID         string            `json:"caseId"`
	ExpectedIntent models.IntentKind `json:"expectedIntent"`
	ActualIntent   models.IntentKind `json:"actualIntent"`
	IntentCorrect  bool              `json:"intentCorrect"`
	Precision      float64           `json:"precision"`
	Recall         float64           `json:"recall"`
	LatencyMs      float64           `json:"latencyMs"`
	CostUSD        float64           `json:"costUsd"`
	Degraded       bool              `json:"degraded"`
	Error          string            `json:"error,omitempty"`
}

// Report aggregates a full corpus run and the threshold verdict.
type Report struct {
	RunAt          time.Time    `json:"runAt"`
	Cases          []CaseResult `json:"cases"`
	TotalCases     int          `json:"totalCases"`
	FailedCases    int          `json:"failedCases"`
	IntentAccuracy float64      `json:"intentAccuracy"`
	MeanPrecision  float64      `json:"meanPrecision"`
	MeanRecall     float64      `json:"meanRecall"`
	F1             float64      `json:"f1"`
	P50LatencyMs   float64      `json:"p50LatencyMs"`
	P95LatencyMs   float64      `json:"p95LatencyMs"`
	MeanCostUSD    float64      `json:"meanCostUsd"`
	MaxCostUSD     float64      `json:"maxCostUsd"`
	Passed         bool         `json:"passed"`
	Violations     []string     `json:"violations,omitempty"`
}

type Harness struct {
	run    RunFunc
	cfg    config.EvaluationConfig
	logger logger.Logger
}

func NewHarness(run RunFunc, cfg config.EvaluationConfig, log logger.Logger) *Harness {
	return &Harness{
		run:    run,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "evaluation"}),
	}
}

// Run evaluates every case, with the configured request parallelism,
// and scores the aggregate against the thresholds. Case order in the
// report matches corpus order regardless of completion order.
func (h *Harness) Run(ctx context.Context, cases []Case) (*Report, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases to evaluate")
	}

	parallel := h.cfg.ParallelRequests
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]CaseResult, len(cases))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for i, c := range cases {
		wg.Add(1)
		go func(idx int, tc Case) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = h.runCase(ctx, tc)
		}(i, c)
	}
	wg.Wait()

	report := h.aggregate(results)
	h.logger.Info("evaluation finished", map[string]interface{}{
		"cases":    report.TotalCases,
		"accuracy": report.IntentAccuracy,
		"p95Ms":    report.P95LatencyMs,
		"passed":   report.Passed,
	})
	return report, nil
}

func (h *Harness) runCase(ctx context.Context, tc Case) CaseResult {
	result := CaseResult{
		CaseID:         tc.ID,
		ExpectedIntent: tc.ExpectedIntent,
	}

	// Each case gets a private session so conversation state cannot
	// leak between cases.
	req := tc.Request
	if req.SessionID == "" {
		req.SessionID = "eval-" + tc.ID
	}

	start := time.Now()
	resp, err := h.run(ctx, &req)
	result.LatencyMs = float64(time.Since(start).Milliseconds())

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.ActualIntent = resp.Intent
	result.IntentCorrect = resp.Intent == tc.ExpectedIntent
	result.CostUSD = resp.CostUSD
	result.Degraded = resp.Degraded

	if len(tc.ExpectedProductIDs) > 0 {
		retrieved := make([]string, 0, len(resp.Products))
		for _, rp := range resp.Products {
			retrieved = append(retrieved, rp.Product.ID)
		}
		result.Precision, result.Recall = precisionRecall(tc.ExpectedProductIDs, retrieved)
	}

	return result
}

func (h *Harness) aggregate(results []CaseResult) *Report {
	report := &Report{
		RunAt:      time.Now().UTC(),
		Cases:      results,
		TotalCases: len(results),
	}

	var latencies, costs, precisions, recalls []float64
	correct := 0

	for _, r := range results {
		if r.Error != "" {
			report.FailedCases++
			continue
		}

		latencies = append(latencies, r.LatencyMs)
		costs = append(costs, r.CostUSD)
		if r.IntentCorrect {
			correct++
		}
		if r.Precision > 0 || r.Recall > 0 {
			precisions = append(precisions, r.Precision)
			recalls = append(recalls, r.Recall)
		}
		if r.CostUSD > report.MaxCostUSD {
			report.MaxCostUSD = r.CostUSD
		}
	}

	scored := report.TotalCases - report.FailedCases
	if scored > 0 {
		report.IntentAccuracy = float64(correct) / float64(scored)
	}
	report.MeanPrecision = mean(precisions)
	report.MeanRecall = mean(recalls)
	report.F1 = f1Score(report.MeanPrecision, report.MeanRecall)
	report.P50LatencyMs = percentile(latencies, 50)
	report.P95LatencyMs = percentile(latencies, 95)
	report.MeanCostUSD = mean(costs)

	if report.FailedCases > 0 {
		report.Violations = append(report.Violations,
			fmt.Sprintf("%d of %d cases errored", report.FailedCases, report.TotalCases))
	}
	if report.IntentAccuracy < h.cfg.MinAccuracy {
		report.Violations = append(report.Violations,
			fmt.Sprintf("intent accuracy %.3f below minimum %.3f", report.IntentAccuracy, h.cfg.MinAccuracy))
	}
	if report.P95LatencyMs > h.cfg.MaxP95LatencyMs {
		report.Violations = append(report.Violations,
			fmt.Sprintf("p95 latency %.0fms above maximum %.0fms", report.P95LatencyMs, h.cfg.MaxP95LatencyMs))
	}
	if report.MaxCostUSD > h.cfg.MaxCostPerQuery {
		report.Violations = append(report.Violations,
			fmt.Sprintf("max cost per query %.4f above limit %.4f", report.MaxCostUSD, h.cfg.MaxCostPerQuery))
	}

	report.Passed = len(report.Violations) == 0
	return report
}
