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

const visionPrompt = `Analyze the product in this image. Respond with JSON only:
{"category": "...", "colors": ["..."], "brand": "...", "description": "...",
 "search_queries": ["..."], "confidence": 0.0}
Use an empty string for brand if none is visible. Provide 1-3 search queries
a shopper could use to find this product.`

// OpenAIProvider analyzes images through the OpenAI chat completions API.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	cost    float64
	client  *commonhttp.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string, costPerCall float64, client *commonhttp.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		cost:    costPerCall,
		client:  client,
	}
}

func (p *OpenAIProvider) Name() string { return "openai-vision" }

type openAIChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Analyze(ctx context.Context, image []byte, opts Options) (*models.VisionAnalysisResult, error) {
	format := opts.ImageFormat
	if format == "" {
		format = "jpeg"
	}
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(image))

	payload := openAIChatRequest{
		Model:     p.model,
		MaxTokens: 500,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContent{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var chat openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse,
			fmt.Errorf("no choices in completion"))
	}

	result, err := parseAnalysisJSON(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	result.Provider = p.Name()
	result.CostUSD = p.cost
	return result, nil
}

// classifyStatus maps an HTTP status to the provider error kind that
// drives the orchestrator's fallback decision.
func classifyStatus(status int) (errors.ProviderErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ProviderAuthError, true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.ProviderTimeout, true
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.ProviderUnavailable, true
	default:
		return errors.ProviderInvalidResponse, true
	}
}

type analysisPayload struct {
	Category      string   `json:"category"`
	Colors        []string `json:"colors"`
	Brand         string   `json:"brand"`
	Description   string   `json:"description"`
	SearchQueries []string `json:"search_queries"`
	Confidence    float64  `json:"confidence"`
}

// parseAnalysisJSON extracts the structured analysis from a model reply,
// tolerating markdown code fences around the JSON body.
func parseAnalysisJSON(content string) (*models.VisionAnalysisResult, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("malformed analysis JSON: %w", err)
	}
	if payload.Category == "" && payload.Description == "" {
		return nil, fmt.Errorf("analysis JSON missing category and description")
	}

	if payload.Confidence <= 0 {
		payload.Confidence = 0.5
	}
	if payload.Confidence > 1 {
		payload.Confidence = 1
	}

	return &models.VisionAnalysisResult{
		Category:      strings.ToLower(payload.Category),
		Colors:        lowercaseAll(payload.Colors),
		Brand:         payload.Brand,
		Description:   payload.Description,
		SearchQueries: payload.SearchQueries,
		Confidence:    payload.Confidence,
	}, nil
}

func lowercaseAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
