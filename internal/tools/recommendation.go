package tools

import (
	"context"

	"github.com/redis/go-redis/v9"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// RecommendationTool suggests products from the per-category trending
// sets maintained in redis, topped up from the catalog when the
// trending signal is thin.
type RecommendationTool struct {
	catalog  Catalog
	trending *redis.Client
	logger   logger.Logger
}

func NewRecommendationTool(catalog Catalog, trending *redis.Client, log logger.Logger) *RecommendationTool {
	return &RecommendationTool{
		catalog:  catalog,
		trending: trending,
		logger:   log.WithFields(map[string]interface{}{"tool": "recommendation"}),
	}
}

func (t *RecommendationTool) Name() string { return "recommendation" }

func (t *RecommendationTool) CanHandle(kind models.IntentKind) bool {
	return kind == models.IntentRecommend
}

func (t *RecommendationTool) Execute(ctx context.Context, params Params) (*Result, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}

	ranked := t.fromTrending(ctx, params.Intent.Filters, limit)

	if len(ranked) < limit {
		topUp, err := t.fromCatalog(ctx, params.Intent.Filters, limit-len(ranked), ranked)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, topUp...)
	}

	sortRanked(ranked)
	return &Result{Tool: t.Name(), Products: ranked}, nil
}

// fromTrending reads the category's trending sorted set. Scores are
// normalized against the top entry. A missing or failing redis is a
// soft miss, not an error.
func (t *RecommendationTool) fromTrending(ctx context.Context, filters models.QueryFilters, limit int) []models.RankedProduct {
	if t.trending == nil {
		return nil
	}

	key := "trending:all"
	if filters.Category != "" {
		key = "trending:" + filters.Category
	}

	entries, err := t.trending.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil || len(entries) == 0 {
		return nil
	}

	topScore := entries[0].Score
	var ranked []models.RankedProduct
	for _, entry := range entries {
		id, ok := entry.Member.(string)
		if !ok {
			continue
		}
		product, err := t.catalog.GetProduct(ctx, id)
		if err != nil {
			t.logger.Warn("trending product unavailable", map[string]interface{}{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}

		score := 1.0
		if topScore > 0 {
			score = entry.Score / topScore
		}
		ranked = append(ranked, models.RankedProduct{
			Product:     *product,
			Score:       score,
			MatchReason: "trending pick",
		})
	}
	return ranked
}

func (t *RecommendationTool) fromCatalog(ctx context.Context, filters models.QueryFilters, limit int, already []models.RankedProduct) ([]models.RankedProduct, error) {
	seen := make(map[string]bool, len(already))
	for _, rp := range already {
		seen[rp.Product.ID] = true
	}

	found, err := t.catalog.FindByFilters(ctx, filters, limit+len(already))
	if err != nil {
		return nil, err
	}

	var ranked []models.RankedProduct
	for _, p := range found {
		if seen[p.ID] || len(ranked) >= limit {
			continue
		}
		ranked = append(ranked, models.RankedProduct{
			Product:     p,
			Score:       0.4,
			MatchReason: "matches your filters",
		})
	}
	return ranked, nil
}
