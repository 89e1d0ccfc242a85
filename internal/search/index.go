// Package search adapts the Elasticsearch product index for keyword and
// semantic retrieval.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

// Hit is one scored product out of the index. Keyword scores are raw
// BM25; semantic scores are kNN similarities.
type Hit struct {
	Product models.Product
	Score   float64
}

type Index struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(es *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// productDoc is the index document shape. min_price is denormalized at
// index time so price filters work without joining the price table.
type productDoc struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Brand       string            `json:"brand,omitempty"`
	Color       string            `json:"color,omitempty"`
	Features    map[string]string `json:"features,omitempty"`
	MinPrice    float64           `json:"min_price,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64    `json:"_score"`
			Source productDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Keyword runs a BM25 multi-match over the product text fields with the
// structured filters applied as a bool filter.
func (i *Index) Keyword(ctx context.Context, text string, filters models.QueryFilters, size int) ([]Hit, error) {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  text,
						"fields": []string{"name^3", "description", "category^2", "brand^2"},
					},
				},
				"filter": buildFilterClauses(filters),
			},
		},
	}
	return i.execute(ctx, query)
}

// Semantic runs a kNN query against the dense product embeddings.
func (i *Index) Semantic(ctx context.Context, vector []float64, filters models.QueryFilters, size int) ([]Hit, error) {
	knn := map[string]interface{}{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              size,
		"num_candidates": size * 10,
	}
	if clauses := buildFilterClauses(filters); len(clauses) > 0 {
		knn["filter"] = map[string]interface{}{
			"bool": map[string]interface{}{"filter": clauses},
		}
	}

	query := map[string]interface{}{
		"size": size,
		"knn":  knn,
	}
	return i.execute(ctx, query)
}

func (i *Index) execute(ctx context.Context, query map[string]interface{}) ([]Hit, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(query); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&body),
	)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(
			fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			Product: models.Product{
				ID:          h.Source.ID,
				Name:        h.Source.Name,
				Description: h.Source.Description,
				Category:    h.Source.Category,
				Brand:       h.Source.Brand,
				Color:       h.Source.Color,
				Features:    h.Source.Features,
			},
			Score: h.Score,
		})
	}
	return hits, nil
}

func buildFilterClauses(filters models.QueryFilters) []map[string]interface{} {
	var clauses []map[string]interface{}

	if filters.Category != "" {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{"category": filters.Category},
		})
	}
	if filters.Brand != "" {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{"brand": filters.Brand},
		})
	}
	if filters.Color != "" {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{"color": filters.Color},
		})
	}

	if filters.PriceMin != nil || filters.PriceMax != nil {
		bounds := map[string]interface{}{}
		if filters.PriceMin != nil {
			bounds["gte"] = *filters.PriceMin
		}
		if filters.PriceMax != nil {
			bounds["lte"] = *filters.PriceMax
		}
		clauses = append(clauses, map[string]interface{}{
			"range": map[string]interface{}{"min_price": bounds},
		})
	}

	return clauses
}
