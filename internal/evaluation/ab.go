package evaluation

import "fmt"

// CaseDiff is one case whose outcome changed between two runs.
type CaseDiff struct {
	CaseID         string `json:"caseId"`
	BaselineIntent string `json:"baselineIntent"`
	CandidateIntent string `json:"candidateIntent"`
	IntentChanged  bool   `json:"intentChanged"`
	LatencyDeltaMs float64 `json:"latencyDeltaMs"`
	CostDeltaUSD   float64 `json:"costDeltaUsd"`
	Note           string  `json:"note,omitempty"`
}

// ABComparison contrasts a candidate run against a baseline run of the
// same corpus.
type ABComparison struct {
	AccuracyDelta  float64    `json:"accuracyDelta"`
	P95DeltaMs     float64    `json:"p95DeltaMs"`
	MeanCostDelta  float64    `json:"meanCostDelta"`
	Regressions    int        `json:"regressions"`
	Improvements   int        `json:"improvements"`
	Diffs          []CaseDiff `json:"diffs,omitempty"`
}

// Compare produces the per-case diff between baseline and candidate
// reports. Cases present in only one report are noted, not dropped.
func Compare(baseline, candidate *Report) *ABComparison {
	cmp := &ABComparison{
		AccuracyDelta: candidate.IntentAccuracy - baseline.IntentAccuracy,
		P95DeltaMs:    candidate.P95LatencyMs - baseline.P95LatencyMs,
		MeanCostDelta: candidate.MeanCostUSD - baseline.MeanCostUSD,
	}

	baseByID := make(map[string]CaseResult, len(baseline.Cases))
	for _, r := range baseline.Cases {
		baseByID[r.CaseID] = r
	}

	seen := make(map[string]bool, len(candidate.Cases))
	for _, cand := range candidate.Cases {
		seen[cand.CaseID] = true

		base, ok := baseByID[cand.CaseID]
		if !ok {
			cmp.Diffs = append(cmp.Diffs, CaseDiff{
				CaseID:          cand.CaseID,
				CandidateIntent: string(cand.ActualIntent),
				Note:            "case missing from baseline run",
			})
			continue
		}

		diff := CaseDiff{
			CaseID:          cand.CaseID,
			BaselineIntent:  string(base.ActualIntent),
			CandidateIntent: string(cand.ActualIntent),
			IntentChanged:   base.ActualIntent != cand.ActualIntent,
			LatencyDeltaMs:  cand.LatencyMs - base.LatencyMs,
			CostDeltaUSD:    cand.CostUSD - base.CostUSD,
		}

		switch {
		case base.IntentCorrect && !cand.IntentCorrect:
			cmp.Regressions++
			diff.Note = "intent regressed"
		case !base.IntentCorrect && cand.IntentCorrect:
			cmp.Improvements++
			diff.Note = "intent fixed"
		}

		if diff.IntentChanged || diff.Note != "" {
			cmp.Diffs = append(cmp.Diffs, diff)
		}
	}

	for _, base := range baseline.Cases {
		if !seen[base.CaseID] {
			cmp.Diffs = append(cmp.Diffs, CaseDiff{
				CaseID:         base.CaseID,
				BaselineIntent: string(base.ActualIntent),
				Note:           fmt.Sprintf("case %s missing from candidate run", base.CaseID),
			})
		}
	}

	return cmp
}
