package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

const sampleHits = `{
	"hits": {
		"hits": [
			{"_score": 12.4, "_source": {"id": "prod-1", "name": "Air Zoom", "category": "shoes", "brand": "nike"}},
			{"_score": 8.1, "_source": {"id": "prod-2", "name": "Ultraboost", "category": "shoes", "brand": "adidas"}}
		]
	}
}`

// newTestIndex backs the ES client with a stub server and captures the
// query body it receives.
func newTestIndex(t *testing.T, status int, response string, capture *map[string]interface{}) *Index {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil && r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				require.NoError(t, json.Unmarshal(raw, capture))
			}
		}

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewIndex(es, "products", logger.NewTestLogger(t))
}

func TestKeywordParsesHits(t *testing.T) {
	var body map[string]interface{}
	idx := newTestIndex(t, http.StatusOK, sampleHits, &body)

	hits, err := idx.Keyword(context.Background(), "running shoes", models.QueryFilters{}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "prod-1", hits[0].Product.ID)
	assert.InDelta(t, 12.4, hits[0].Score, 1e-9)
	assert.Equal(t, "nike", hits[0].Product.Brand)

	must := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].(map[string]interface{})
	multiMatch := must["multi_match"].(map[string]interface{})
	assert.Equal(t, "running shoes", multiMatch["query"])
}

func TestKeywordAppliesFilters(t *testing.T) {
	var body map[string]interface{}
	idx := newTestIndex(t, http.StatusOK, sampleHits, &body)

	maxPrice := 100.0
	filters := models.QueryFilters{Category: "shoes", Brand: "nike", PriceMax: &maxPrice}
	_, err := idx.Keyword(context.Background(), "running", filters, 10)
	require.NoError(t, err)

	clauses := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	require.Len(t, clauses, 3)

	rangeClause := clauses[2].(map[string]interface{})["range"].(map[string]interface{})["min_price"].(map[string]interface{})
	assert.InDelta(t, 100.0, rangeClause["lte"].(float64), 1e-9)
	_, hasMin := rangeClause["gte"]
	assert.False(t, hasMin)
}

func TestSemanticBuildsKnnQuery(t *testing.T) {
	var body map[string]interface{}
	idx := newTestIndex(t, http.StatusOK, sampleHits, &body)

	hits, err := idx.Semantic(context.Background(), []float64{0.1, 0.2}, models.QueryFilters{Category: "shoes"}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	knn := body["knn"].(map[string]interface{})
	assert.Equal(t, "embedding", knn["field"])
	assert.InDelta(t, 5, knn["k"].(float64), 1e-9)
	assert.InDelta(t, 50, knn["num_candidates"].(float64), 1e-9)
	assert.NotNil(t, knn["filter"])
}

func TestSemanticOmitsEmptyFilter(t *testing.T) {
	var body map[string]interface{}
	idx := newTestIndex(t, http.StatusOK, sampleHits, &body)

	_, err := idx.Semantic(context.Background(), []float64{0.1}, models.QueryFilters{}, 5)
	require.NoError(t, err)

	knn := body["knn"].(map[string]interface{})
	_, hasFilter := knn["filter"]
	assert.False(t, hasFilter)
}

func TestSearchErrorStatus(t *testing.T) {
	idx := newTestIndex(t, http.StatusInternalServerError, `{"error": "boom"}`, nil)

	_, err := idx.Keyword(context.Background(), "shoes", models.QueryFilters{}, 10)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, stdErr.Code)
}

func TestSearchEmptyResult(t *testing.T) {
	idx := newTestIndex(t, http.StatusOK, `{"hits": {"hits": []}}`, nil)

	hits, err := idx.Keyword(context.Background(), "nothing", models.QueryFilters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
