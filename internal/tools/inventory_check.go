package tools

import (
	"context"
	"fmt"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// InventoryCheckTool reports per-retailer availability for candidate
// products. Products with no stock anywhere score zero so the merge
// pushes them down rather than dropping them.
type InventoryCheckTool struct {
	catalog Catalog
	logger  logger.Logger
}

func NewInventoryCheckTool(catalog Catalog, log logger.Logger) *InventoryCheckTool {
	return &InventoryCheckTool{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"tool": "inventory_check"}),
	}
}

func (t *InventoryCheckTool) Name() string { return "inventory_check" }

func (t *InventoryCheckTool) CanHandle(kind models.IntentKind) bool {
	return kind == models.IntentSearch || kind == models.IntentPurchase
}

func (t *InventoryCheckTool) Execute(ctx context.Context, params Params) (*Result, error) {
	if len(params.CandidateIDs) == 0 {
		return &Result{Tool: t.Name()}, nil
	}

	var ranked []models.RankedProduct
	for _, id := range params.CandidateIDs {
		product, err := t.catalog.GetProduct(ctx, id)
		if err != nil {
			t.logger.Warn("inventory candidate unavailable", map[string]interface{}{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}

		available, total := 0, len(product.Prices)
		for _, price := range product.Prices {
			if price.Available {
				available++
			}
		}

		rp := models.RankedProduct{Product: *product}
		if total > 0 {
			rp.Score = float64(available) / float64(total)
		}
		if available > 0 {
			rp.MatchReason = fmt.Sprintf("in stock at %d of %d retailers", available, total)
			if best := product.BestPrice(); best != nil {
				rp.Retailer = best.Retailer
			}
		} else {
			rp.MatchReason = "out of stock everywhere"
		}
		ranked = append(ranked, rp)
	}
	sortRanked(ranked)

	return &Result{Tool: t.Name(), Products: ranked}, nil
}
