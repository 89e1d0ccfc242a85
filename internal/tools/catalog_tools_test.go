package tools

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

type fakeCatalog struct {
	products map[string]models.Product
	byFilter []models.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, errors.NewProductNotFoundError(id)
}

func (f *fakeCatalog) GetPrices(ctx context.Context, id string) ([]models.PriceInfo, error) {
	if p, ok := f.products[id]; ok {
		return p.Prices, nil
	}
	return nil, errors.NewProductNotFoundError(id)
}

func (f *fakeCatalog) GetReviewSummary(ctx context.Context, id string) (*models.ReviewSummary, error) {
	if p, ok := f.products[id]; ok {
		return p.Reviews, nil
	}
	return nil, errors.NewProductNotFoundError(id)
}

func (f *fakeCatalog) FindByFilters(ctx context.Context, filters models.QueryFilters, limit int) ([]models.Product, error) {
	if limit < len(f.byFilter) {
		return f.byFilter[:limit], nil
	}
	return f.byFilter, nil
}

func price(amount float64, retailer string, available bool, stock int) models.PriceInfo {
	return models.PriceInfo{
		Amount: amount, Currency: "USD", Retailer: retailer,
		Available: available, StockCount: stock, UpdatedAt: time.Now(),
	}
}

func catalogFixture() *fakeCatalog {
	return &fakeCatalog{products: map[string]models.Product{
		"prod-1": {
			ID: "prod-1", Name: "Trail Runner X", Category: "shoes", Brand: "nike",
			Prices:  []models.PriceInfo{price(89.99, "shopmart", true, 10), price(84.99, "stockly", false, 0)},
			Reviews: &models.ReviewSummary{AverageRating: 4.4, TotalReviews: 210, SentimentScore: 0.82},
		},
		"prod-2": {
			ID: "prod-2", Name: "Court Classic", Category: "shoes", Brand: "adidas",
			Prices:  []models.PriceInfo{price(74.50, "shopmart", true, 4)},
			Reviews: &models.ReviewSummary{AverageRating: 3.9, TotalReviews: 95, SentimentScore: 0.61},
		},
		"prod-3": {
			ID: "prod-3", Name: "Street Flex", Category: "shoes", Brand: "puma",
			Prices: []models.PriceInfo{price(99.00, "stockly", false, 0)},
		},
	}}
}

func compareParams(ids ...string) Params {
	return Params{
		Query:        &models.Query{ID: "q1"},
		Intent:       models.Intent{Kind: models.IntentCompare, Filters: models.QueryFilters{Category: "shoes"}},
		Limit:        5,
		CandidateIDs: ids,
	}
}

func TestPriceComparisonDeclaresCheapestWinner(t *testing.T) {
	tool := NewPriceComparisonTool(catalogFixture(), logger.NewTestLogger(t))

	result, err := tool.Execute(context.Background(), compareParams("prod-1", "prod-2"))
	require.NoError(t, err)

	require.NotNil(t, result.Comparison)
	assert.Equal(t, []string{"prod-1", "prod-2"}, result.Comparison.ProductIDs)
	assert.Equal(t, "prod-2", result.Comparison.WinnerID)
	assert.Contains(t, result.Comparison.WinnerReason, "74.50")
	assert.Contains(t, result.Comparison.Table["price"][0], "89.99")

	// Winner ranks first.
	require.NotEmpty(t, result.Products)
	assert.Equal(t, "prod-2", result.Products[0].Product.ID)
	assert.Equal(t, "shopmart", result.Products[0].Retailer)
}

func TestPriceComparisonSkipsUnknownCandidates(t *testing.T) {
	tool := NewPriceComparisonTool(catalogFixture(), logger.NewTestLogger(t))

	result, err := tool.Execute(context.Background(), compareParams("prod-1", "missing"))
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-1"}, result.Comparison.ProductIDs)
}

func TestPriceComparisonUnavailableProductHasNoPriceCell(t *testing.T) {
	tool := NewPriceComparisonTool(catalogFixture(), logger.NewTestLogger(t))

	result, err := tool.Execute(context.Background(), compareParams("prod-3"))
	require.NoError(t, err)
	assert.Equal(t, "unavailable", result.Comparison.Table["price"][0])
	assert.Empty(t, result.Comparison.WinnerID)
}

func TestInventoryCheckScoresByAvailability(t *testing.T) {
	tool := NewInventoryCheckTool(catalogFixture(), logger.NewTestLogger(t))

	params := compareParams("prod-1", "prod-3")
	params.Intent.Kind = models.IntentSearch

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Products, 2)

	assert.Equal(t, "prod-1", result.Products[0].Product.ID)
	assert.InDelta(t, 0.5, result.Products[0].Score, 1e-9)
	assert.Contains(t, result.Products[0].MatchReason, "in stock at 1 of 2 retailers")

	assert.Equal(t, "prod-3", result.Products[1].Product.ID)
	assert.Equal(t, 0.0, result.Products[1].Score)
	assert.Equal(t, "out of stock everywhere", result.Products[1].MatchReason)
}

func TestInventoryCheckNoCandidatesIsEmpty(t *testing.T) {
	tool := NewInventoryCheckTool(catalogFixture(), logger.NewTestLogger(t))

	result, err := tool.Execute(context.Background(), compareParams())
	require.NoError(t, err)
	assert.Empty(t, result.Products)
}

func TestRecommendationPullsTrendingFirst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mr.ZAdd("trending:shoes", 120, "prod-2")
	mr.ZAdd("trending:shoes", 300, "prod-1")

	tool := NewRecommendationTool(catalogFixture(), client, logger.NewTestLogger(t))

	params := compareParams()
	params.Intent.Kind = models.IntentRecommend
	params.Limit = 2

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Products, 2)

	assert.Equal(t, "prod-1", result.Products[0].Product.ID)
	assert.InDelta(t, 1.0, result.Products[0].Score, 1e-9)
	assert.Equal(t, "trending pick", result.Products[0].MatchReason)
	assert.Equal(t, "prod-2", result.Products[1].Product.ID)
	assert.InDelta(t, 0.4, result.Products[1].Score, 1e-9)
}

func TestRecommendationTopsUpFromCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	catalog := catalogFixture()
	catalog.byFilter = []models.Product{catalog.products["prod-1"], catalog.products["prod-2"]}

	tool := NewRecommendationTool(catalog, client, logger.NewTestLogger(t))

	params := compareParams()
	params.Intent.Kind = models.IntentRecommend
	params.Limit = 2

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "matches your filters", result.Products[0].MatchReason)
}

func TestReviewAnalysisRanksBySentimentAndRating(t *testing.T) {
	tool := NewReviewAnalysisTool(catalogFixture(), logger.NewTestLogger(t))

	result, err := tool.Execute(context.Background(), compareParams("prod-1", "prod-2", "prod-3"))
	require.NoError(t, err)

	// prod-3 has no reviews and is dropped.
	require.Len(t, result.Products, 2)
	assert.Equal(t, "prod-1", result.Products[0].Product.ID)
	assert.InDelta(t, 0.5*0.82+0.5*(4.4/5.0), result.Products[0].Score, 1e-9)
	assert.Contains(t, result.Products[0].MatchReason, "4.4")
}
