package evaluation

import "sort"

// percentile returns the pth percentile (0-100) of values using
// nearest-rank on a sorted copy. Zero for an empty input.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := int(float64(len(sorted))*p/100.0+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// precisionRecall scores retrieved ids against the expected set.
func precisionRecall(expected, retrieved []string) (precision, recall float64) {
	if len(expected) == 0 || len(retrieved) == 0 {
		return 0, 0
	}

	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}

	hits := 0
	for _, id := range retrieved {
		if want[id] {
			hits++
		}
	}

	return float64(hits) / float64(len(retrieved)), float64(hits) / float64(len(expected))
}

func f1Score(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
