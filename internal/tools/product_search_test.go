package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
	"product-discovery/internal/search"
)

type fakeIndex struct {
	keyword      []search.Hit
	semantic     []search.Hit
	keywordCalls int
	semanticCalls int
	err          error
}

func (f *fakeIndex) Keyword(ctx context.Context, text string, filters models.QueryFilters, size int) ([]search.Hit, error) {
	f.keywordCalls++
	return f.keyword, f.err
}

func (f *fakeIndex) Semantic(ctx context.Context, vector []float64, filters models.QueryFilters, size int) ([]search.Hit, error) {
	f.semanticCalls++
	return f.semantic, f.err
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.vector, f.err
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestProductSearchCombinesChannels(t *testing.T) {
	index := &fakeIndex{
		keyword:  []search.Hit{hit("a", 8.0)},
		semantic: []search.Hit{hit("b", 0.9)},
	}

	tool := NewProductSearchTool(index, &fakeEmbedder{vector: []float64{0.1}}, testRedis(t), 0.6, logger.NewTestLogger(t))
	result, err := tool.Execute(context.Background(), searchParams())
	require.NoError(t, err)

	require.Len(t, result.Products, 2)
	assert.Equal(t, "b", result.Products[0].Product.ID)
	assert.InDelta(t, 0.6, result.Products[0].Score, 1e-9)
	assert.Equal(t, "a", result.Products[1].Product.ID)
	assert.InDelta(t, 0.4, result.Products[1].Score, 1e-9)
}

func TestProductSearchServesSecondCallFromCache(t *testing.T) {
	index := &fakeIndex{keyword: []search.Hit{hit("a", 5.0)}}

	tool := NewProductSearchTool(index, &fakeEmbedder{vector: []float64{0.1}}, testRedis(t), 0.6, logger.NewTestLogger(t))

	_, err := tool.Execute(context.Background(), searchParams())
	require.NoError(t, err)
	result, err := tool.Execute(context.Background(), searchParams())
	require.NoError(t, err)

	assert.Equal(t, 1, index.keywordCalls)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "a", result.Products[0].Product.ID)
}

func TestProductSearchDegradesToKeywordOnEmbeddingFailure(t *testing.T) {
	index := &fakeIndex{keyword: []search.Hit{hit("a", 5.0)}}

	tool := NewProductSearchTool(index, &fakeEmbedder{err: fmt.Errorf("embedding down")}, testRedis(t), 0.6, logger.NewTestLogger(t))
	result, err := tool.Execute(context.Background(), searchParams())
	require.NoError(t, err)

	assert.Equal(t, 0, index.semanticCalls)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "keyword match", result.Products[0].MatchReason)
}

func TestProductSearchPrefersSearchTextOverQueryText(t *testing.T) {
	index := &fakeIndex{}
	tool := NewProductSearchTool(index, &fakeEmbedder{vector: []float64{0.1}}, testRedis(t), 0.6, logger.NewTestLogger(t))

	params := searchParams()
	params.Query.Text = ""
	params.SearchText = "white nike sneakers"

	_, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, index.keywordCalls)
}

func TestProductSearchRequiresText(t *testing.T) {
	tool := NewProductSearchTool(&fakeIndex{}, &fakeEmbedder{}, testRedis(t), 0.6, logger.NewTestLogger(t))

	params := searchParams()
	params.Query.Text = ""

	_, err := tool.Execute(context.Background(), params)
	assert.Error(t, err)
}
