package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
	"product-discovery/internal/search"
)

// Embedder produces the query vector for semantic retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ProductIndex is the retrieval surface of the search index.
type ProductIndex interface {
	Keyword(ctx context.Context, text string, filters models.QueryFilters, size int) ([]search.Hit, error)
	Semantic(ctx context.Context, vector []float64, filters models.QueryFilters, size int) ([]search.Hit, error)
}

const searchCacheTTL = 5 * time.Minute

// ProductSearchTool retrieves catalog products by blending keyword and
// semantic search. Identical queries are served from a short-lived
// redis cache.
type ProductSearchTool struct {
	index    ProductIndex
	embedder Embedder
	cache    *redis.Client
	alpha    float64
	logger   logger.Logger
}

func NewProductSearchTool(index ProductIndex, embedder Embedder, cache *redis.Client, alpha float64, log logger.Logger) *ProductSearchTool {
	return &ProductSearchTool{
		index:    index,
		embedder: embedder,
		cache:    cache,
		alpha:    alpha,
		logger:   log.WithFields(map[string]interface{}{"tool": "product_search"}),
	}
}

func (t *ProductSearchTool) Name() string { return "product_search" }

func (t *ProductSearchTool) CanHandle(kind models.IntentKind) bool {
	return kind == models.IntentSearch || kind == models.IntentPurchase
}

func (t *ProductSearchTool) Execute(ctx context.Context, params Params) (*Result, error) {
	text := params.SearchText
	if text == "" && params.Query != nil {
		text = params.Query.Text
	}
	if text == "" {
		return nil, fmt.Errorf("product_search requires query text")
	}

	filters := params.Intent.Filters
	limit := params.Limit

	cacheKey := t.cacheKey(text, filters, limit)
	if cached := t.fromCache(ctx, cacheKey); cached != nil {
		return &Result{Tool: t.Name(), Products: cached}, nil
	}

	keyword, err := t.index.Keyword(ctx, text, filters, limit*2)
	if err != nil {
		return nil, err
	}

	// A failed embedding degrades to keyword-only retrieval instead of
	// failing the tool.
	var semantic []search.Hit
	if vector, embErr := t.embedder.Embed(ctx, text); embErr == nil {
		semantic, err = t.index.Semantic(ctx, vector, filters, limit*2)
		if err != nil {
			return nil, err
		}
	} else {
		t.logger.Warn("embedding failed, keyword-only retrieval", map[string]interface{}{
			"error": embErr.Error(),
		})
	}

	ranked := CombineHits(semantic, keyword, t.alpha, limit)
	t.toCache(ctx, cacheKey, ranked)

	return &Result{Tool: t.Name(), Products: ranked}, nil
}

func (t *ProductSearchTool) cacheKey(text string, filters models.QueryFilters, limit int) string {
	raw, _ := json.Marshal(struct {
		Text    string              `json:"text"`
		Filters models.QueryFilters `json:"filters"`
		Limit   int                 `json:"limit"`
	}{text, filters, limit})

	sum := sha256.Sum256(raw)
	return "search:" + hex.EncodeToString(sum[:16])
}

func (t *ProductSearchTool) fromCache(ctx context.Context, key string) []models.RankedProduct {
	if t.cache == nil {
		return nil
	}

	raw, err := t.cache.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var ranked []models.RankedProduct
	if err := json.Unmarshal([]byte(raw), &ranked); err != nil {
		return nil
	}
	return ranked
}

func (t *ProductSearchTool) toCache(ctx context.Context, key string, ranked []models.RankedProduct) {
	if t.cache == nil || len(ranked) == 0 {
		return
	}

	raw, err := json.Marshal(ranked)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, key, raw, searchCacheTTL).Err(); err != nil {
		t.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
