// Package synthesizer turns the pipeline's structured results into the
// final user-facing response.
package synthesizer

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

// Generator produces natural-language text from a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenAIClient calls an OpenAI-compatible chat completions endpoint.
type GenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *commonhttp.Client
}

func NewGenAIClient(baseURL, apiKey, model string, client *commonhttp.Client) *GenAIClient {
	return &GenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *GenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a shopping assistant. Only mention facts present in the prompt; never invent product names, prices or ratings."},
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.NewGenerationFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.NewGenerationFailedError(err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.NewGenerationFailedError(fmt.Errorf("empty completion"))
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
