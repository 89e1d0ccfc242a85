// Package embedding provides text embeddings for semantic product
// search via an OpenAI-compatible embeddings API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"product-discovery/internal/common/errors"
	commonhttp "product-discovery/internal/common/http"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	cost       float64
	client     *commonhttp.Client
}

func NewClient(baseURL, apiKey, model string, dimensions int, costPerCall float64, client *commonhttp.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		cost:       costPerCall,
		client:     client,
	}
}

// Dimensions returns the configured vector width.
func (c *Client) Dimensions() int { return c.dimensions }

// CostPerCall returns the unit cost charged per embed call.
func (c *Client) CostPerCall() float64 { return c.cost }

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	payload := embedRequest{
		Model:      c.model,
		Input:      []string{text},
		Dimensions: c.dimensions,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewEmbeddingFailedError(err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewEmbeddingFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, errors.NewEmbeddingFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewEmbeddingFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewEmbeddingFailedError(err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, errors.NewEmbeddingFailedError(fmt.Errorf("empty embedding response"))
	}

	return parsed.Data[0].Embedding, nil
}
