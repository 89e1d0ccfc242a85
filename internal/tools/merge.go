package tools

import (
	"sort"
	"strings"

	"product-discovery/internal/models"
	"product-discovery/internal/search"
)

// CombineHits blends semantic and keyword retrieval into one ranked
// list. Scores from each channel are normalized to [0,1] by their own
// maximum, then combined as alpha*semantic + (1-alpha)*keyword.
func CombineHits(semantic, keyword []search.Hit, alpha float64, limit int) []models.RankedProduct {
	type entry struct {
		product  models.Product
		semScore float64
		kwScore  float64
	}

	entries := make(map[string]*entry)

	for _, hit := range normalizeHits(semantic) {
		entries[hit.Product.ID] = &entry{product: hit.Product, semScore: hit.Score}
	}
	for _, hit := range normalizeHits(keyword) {
		if e, ok := entries[hit.Product.ID]; ok {
			e.kwScore = hit.Score
		} else {
			entries[hit.Product.ID] = &entry{product: hit.Product, kwScore: hit.Score}
		}
	}

	ranked := make([]models.RankedProduct, 0, len(entries))
	for _, e := range entries {
		var reasons []string
		if e.semScore > 0 {
			reasons = append(reasons, "semantic match")
		}
		if e.kwScore > 0 {
			reasons = append(reasons, "keyword match")
		}
		ranked = append(ranked, models.RankedProduct{
			Product:     e.product,
			Score:       alpha*e.semScore + (1-alpha)*e.kwScore,
			MatchReason: strings.Join(reasons, ", "),
		})
	}

	sortRanked(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// MergeResults flattens the product lists of every tool result into one
// ranking. Duplicate products keep their maximum score and the union of
// their match reasons. Order is score descending, ties broken by
// ascending product id so equal-scored results are deterministic.
func MergeResults(results []Result, limit int) []models.RankedProduct {
	merged := make(map[string]*models.RankedProduct)
	reasons := make(map[string]map[string]bool)

	for _, result := range results {
		for _, rp := range result.Products {
			id := rp.Product.ID
			existing, ok := merged[id]
			if !ok {
				cp := rp
				merged[id] = &cp
				reasons[id] = splitReasons(rp.MatchReason)
				continue
			}

			if rp.Score > existing.Score {
				*existing = rp
			}
			for reason := range splitReasons(rp.MatchReason) {
				reasons[id][reason] = true
			}
		}
	}

	ranked := make([]models.RankedProduct, 0, len(merged))
	for id, rp := range merged {
		rp.MatchReason = joinReasons(reasons[id])
		ranked = append(ranked, *rp)
	}

	sortRanked(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sortRanked(ranked []models.RankedProduct) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Product.ID < ranked[j].Product.ID
	})
}

func normalizeHits(hits []search.Hit) []search.Hit {
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max == 0 {
		return hits
	}

	out := make([]search.Hit, len(hits))
	for i, h := range hits {
		out[i] = search.Hit{Product: h.Product, Score: h.Score / max}
	}
	return out
}

func splitReasons(joined string) map[string]bool {
	set := make(map[string]bool)
	for _, r := range strings.Split(joined, ", ") {
		r = strings.TrimSpace(r)
		if r != "" {
			set[r] = true
		}
	}
	return set
}

func joinReasons(set map[string]bool) string {
	reasons := make([]string, 0, len(set))
	for r := range set {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return strings.Join(reasons, ", ")
}
