package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"product-discovery/internal/common/errors"
	commonhttp "product-discovery/internal/common/http"
	"product-discovery/internal/models"
)

// AnthropicProvider analyzes images through the Anthropic messages API.
type AnthropicProvider struct {
	baseURL string
	apiKey  string
	model   string
	cost    float64
	client  *commonhttp.Client
}

func NewAnthropicProvider(baseURL, apiKey, model string, costPerCall float64, client *commonhttp.Client) *AnthropicProvider {
	return &AnthropicProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		cost:    costPerCall,
		client:  client,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic-vision" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *AnthropicProvider) Analyze(ctx context.Context, image []byte, opts Options) (*models.VisionAnalysisResult, error) {
	format := opts.ImageFormat
	if format == "" {
		format = "jpeg"
	}

	payload := anthropicRequest{
		Model:     p.model,
		MaxTokens: 500,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{Type: "image", Source: &anthropicSource{
					Type:      "base64",
					MediaType: "image/" + format,
					Data:      base64.StdEncoding.EncodeToString(image),
				}},
				{Type: "text", Text: visionPrompt},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewProviderError(p.Name(), errors.ProviderTimeout, err)
		}
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if kind, bad := classifyStatus(resp.StatusCode); bad {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewProviderError(p.Name(), kind,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var msg anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse,
			fmt.Errorf("no text block in message response"))
	}

	result, err := parseAnalysisJSON(text)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	result.Provider = p.Name()
	result.CostUSD = p.cost
	return result, nil
}
