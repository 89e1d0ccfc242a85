package tools

import (
	"context"
	"fmt"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// ReviewAnalysisTool scores candidate products by review sentiment and
// rating so comparisons and recommendations reflect buyer experience,
// not just price.
type ReviewAnalysisTool struct {
	catalog Catalog
	logger  logger.Logger
}

func NewReviewAnalysisTool(catalog Catalog, log logger.Logger) *ReviewAnalysisTool {
	return &ReviewAnalysisTool{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"tool": "review_analysis"}),
	}
}

func (t *ReviewAnalysisTool) Name() string { return "review_analysis" }

func (t *ReviewAnalysisTool) CanHandle(kind models.IntentKind) bool {
	return kind == models.IntentCompare || kind == models.IntentRecommend
}

func (t *ReviewAnalysisTool) Execute(ctx context.Context, params Params) (*Result, error) {
	ids := params.CandidateIDs
	if len(ids) == 0 {
		found, err := t.catalog.FindByFilters(ctx, params.Intent.Filters, params.Limit)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			ids = append(ids, p.ID)
		}
	}

	var ranked []models.RankedProduct
	for _, id := range ids {
		product, err := t.catalog.GetProduct(ctx, id)
		if err != nil {
			t.logger.Warn("review candidate unavailable", map[string]interface{}{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}
		if product.Reviews == nil {
			continue
		}

		r := product.Reviews
		score := 0.5*r.SentimentScore + 0.5*(r.AverageRating/5.0)
		ranked = append(ranked, models.RankedProduct{
			Product:     *product,
			Score:       score,
			MatchReason: fmt.Sprintf("rated %.1f across %d reviews", r.AverageRating, r.TotalReviews),
		})
	}
	sortRanked(ranked)

	return &Result{Tool: t.Name(), Products: ranked}, nil
}
