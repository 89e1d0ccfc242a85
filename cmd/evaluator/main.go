// cmd/evaluator/main.go
//
// Runs a labeled query corpus through the full pipeline and scores the
// results against the configured release thresholds. Exits nonzero when
// any threshold is violated, so it can gate a deploy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"product-discovery/internal/app"
	"product-discovery/internal/common/config"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/common/observability"
	"product-discovery/internal/evaluation"
)

func main() {
	var (
		corpusPath   = flag.String("corpus", "", "corpus file (defaults to evaluation.corpus_path)")
		outputPath   = flag.String("output", "", "report file (defaults to evaluation.output_path)")
		baselinePath = flag.String("baseline", "", "optional baseline report for A/B comparison")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *corpusPath == "" {
		*corpusPath = cfg.Evaluation.CorpusPath
	}
	if *outputPath == "" {
		*outputPath = cfg.Evaluation.OutputPath
	}
	if *corpusPath == "" {
		fmt.Fprintln(os.Stderr, "no corpus: pass -corpus or set evaluation.corpus_path")
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	cases, err := evaluation.LoadCorpus(*corpusPath)
	if err != nil {
		log.Error("corpus rejected", map[string]interface{}{"path": *corpusPath, "error": err.Error()})
		os.Exit(1)
	}

	ctx := context.Background()
	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("infrastructure unavailable", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer infra.Close()

	obs := observability.New(cfg.App.Name + "-evaluator")
	defer obs.Shutdown()

	pipe, err := app.BuildPipeline(cfg, infra, obs, log)
	if err != nil {
		log.Error("pipeline construction failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	harness := evaluation.NewHarness(pipe.Process, cfg.Evaluation, log)
	report, err := harness.Run(ctx, cases)
	if err != nil {
		log.Error("evaluation run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if *outputPath != "" {
		if err := writeJSON(*outputPath, report); err != nil {
			log.Error("failed to write report", map[string]interface{}{"path": *outputPath, "error": err.Error()})
			os.Exit(1)
		}
		log.Info("report written", map[string]interface{}{"path": *outputPath})
	}

	if *baselinePath != "" {
		baseline, err := readReport(*baselinePath)
		if err != nil {
			log.Error("failed to read baseline", map[string]interface{}{"path": *baselinePath, "error": err.Error()})
			os.Exit(1)
		}

		comparison := evaluation.Compare(baseline, report)
		log.Info("baseline comparison", map[string]interface{}{
			"accuracyDelta": comparison.AccuracyDelta,
			"p95DeltaMs":    comparison.P95DeltaMs,
			"regressions":   comparison.Regressions,
			"improvements":  comparison.Improvements,
		})
		for _, diff := range comparison.Diffs {
			log.Info("case diff", map[string]interface{}{
				"caseId":          diff.CaseID,
				"baselineIntent":  diff.BaselineIntent,
				"candidateIntent": diff.CandidateIntent,
				"note":            diff.Note,
			})
		}
	}

	if !report.Passed {
		for _, violation := range report.Violations {
			log.Error("threshold violated", map[string]interface{}{"violation": violation})
		}
		os.Exit(1)
	}

	log.Info("evaluation passed", map[string]interface{}{
		"cases":    report.TotalCases,
		"accuracy": report.IntentAccuracy,
		"p95Ms":    report.P95LatencyMs,
	})
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readReport(path string) (*evaluation.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report evaluation.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding baseline report: %w", err)
	}
	return &report, nil
}
