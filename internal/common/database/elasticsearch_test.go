package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/config"
)

func TestNewElasticsearchCarriesProductIndex(t *testing.T) {
	client, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses:    []string{"http://localhost:9200"},
		ProductIndex: "products-v2",
	})
	require.NoError(t, err)
	assert.Equal(t, "products-v2", client.ProductIndex())
}

func TestPingRespectsCallerContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses:    []string{server.URL},
		ProductIndex: "products",
	})
	require.NoError(t, err)

	require.NoError(t, client.Ping(context.Background()))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, client.Ping(cancelled))
}
