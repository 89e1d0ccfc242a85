package tools

import (
	"context"
	"fmt"
	"sort"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// Catalog is the repository surface the comparison, inventory,
// recommendation and review tools share.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetPrices(ctx context.Context, productID string) ([]models.PriceInfo, error)
	GetReviewSummary(ctx context.Context, productID string) (*models.ReviewSummary, error)
	FindByFilters(ctx context.Context, filters models.QueryFilters, limit int) ([]models.Product, error)
}

// PriceComparisonTool builds a side-by-side comparison of candidate
// products and declares the best available price the winner.
type PriceComparisonTool struct {
	catalog Catalog
	logger  logger.Logger
}

func NewPriceComparisonTool(catalog Catalog, log logger.Logger) *PriceComparisonTool {
	return &PriceComparisonTool{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"tool": "price_comparison"}),
	}
}

func (t *PriceComparisonTool) Name() string { return "price_comparison" }

func (t *PriceComparisonTool) CanHandle(kind models.IntentKind) bool {
	return kind == models.IntentCompare || kind == models.IntentPurchase
}

func (t *PriceComparisonTool) Execute(ctx context.Context, params Params) (*Result, error) {
	products, err := t.loadCandidates(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &Result{Tool: t.Name()}, nil
	}

	comparison := buildComparison(products)

	ranked := make([]models.RankedProduct, 0, len(products))
	for _, p := range products {
		rp := models.RankedProduct{
			Product:     p,
			MatchReason: "comparison candidate",
		}
		if best := p.BestPrice(); best != nil {
			rp.Retailer = best.Retailer
		}
		if p.ID == comparison.WinnerID {
			rp.Score = 1.0
			rp.MatchReason = "comparison candidate, best price"
		} else {
			rp.Score = 0.5
		}
		ranked = append(ranked, rp)
	}
	sortRanked(ranked)

	return &Result{Tool: t.Name(), Products: ranked, Comparison: comparison}, nil
}

func (t *PriceComparisonTool) loadCandidates(ctx context.Context, params Params) ([]models.Product, error) {
	ids := params.CandidateIDs

	if len(ids) == 0 {
		// No explicit candidates in the conversation; compare the top
		// catalog matches for the active filters instead.
		found, err := t.catalog.FindByFilters(ctx, params.Intent.Filters, 3)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			ids = append(ids, p.ID)
		}
	}

	var products []models.Product
	for _, id := range ids {
		product, err := t.catalog.GetProduct(ctx, id)
		if err != nil {
			t.logger.Warn("comparison candidate unavailable", map[string]interface{}{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}
		products = append(products, *product)
	}
	return products, nil
}

// buildComparison lays the products out as attribute rows, column order
// matching ProductIDs.
func buildComparison(products []models.Product) *models.Comparison {
	c := &models.Comparison{
		Table: map[string][]string{
			"name":     make([]string, len(products)),
			"brand":    make([]string, len(products)),
			"category": make([]string, len(products)),
			"price":    make([]string, len(products)),
			"rating":   make([]string, len(products)),
		},
	}

	var winner *models.Product
	var winnerPrice float64

	for i := range products {
		p := &products[i]
		c.ProductIDs = append(c.ProductIDs, p.ID)

		c.Table["name"][i] = p.Name
		c.Table["brand"][i] = valueOrDash(p.Brand)
		c.Table["category"][i] = valueOrDash(p.Category)

		if best := p.BestPrice(); best != nil {
			c.Table["price"][i] = fmt.Sprintf("%.2f %s (%s)", best.Amount, best.Currency, best.Retailer)
			if winner == nil || best.Amount < winnerPrice {
				winner = p
				winnerPrice = best.Amount
			}
		} else {
			c.Table["price"][i] = "unavailable"
		}

		if p.Reviews != nil {
			c.Table["rating"][i] = fmt.Sprintf("%.1f (%d reviews)", p.Reviews.AverageRating, p.Reviews.TotalReviews)
		} else {
			c.Table["rating"][i] = "-"
		}
	}

	if winner != nil {
		c.WinnerID = winner.ID
		c.WinnerReason = fmt.Sprintf("best available price at %.2f", winnerPrice)
	}

	c.KeyDifferences = keyDifferences(products)
	return c
}

func keyDifferences(products []models.Product) []string {
	if len(products) < 2 {
		return nil
	}

	var diffs []string

	lo, hi, found := priceSpread(products)
	if found && hi > lo {
		diffs = append(diffs, fmt.Sprintf("price spread of %.2f between cheapest and priciest", hi-lo))
	}

	brands := map[string]bool{}
	for _, p := range products {
		if p.Brand != "" {
			brands[p.Brand] = true
		}
	}
	if len(brands) > 1 {
		diffs = append(diffs, fmt.Sprintf("%d different brands in the running", len(brands)))
	}

	ratings := make([]float64, 0, len(products))
	for _, p := range products {
		if p.Reviews != nil {
			ratings = append(ratings, p.Reviews.AverageRating)
		}
	}
	if len(ratings) >= 2 {
		sort.Float64s(ratings)
		if spread := ratings[len(ratings)-1] - ratings[0]; spread >= 0.5 {
			diffs = append(diffs, fmt.Sprintf("ratings differ by %.1f stars", spread))
		}
	}

	return diffs
}

func priceSpread(products []models.Product) (float64, float64, bool) {
	lo, hi := 0.0, 0.0
	found := false
	for i := range products {
		best := products[i].BestPrice()
		if best == nil {
			continue
		}
		if !found {
			lo, hi = best.Amount, best.Amount
			found = true
			continue
		}
		if best.Amount < lo {
			lo = best.Amount
		}
		if best.Amount > hi {
			hi = best.Amount
		}
	}
	return lo, hi, found
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
