package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"product-discovery/internal/common/errors"
	commonhttp "product-discovery/internal/common/http"
	"product-discovery/internal/models"
)

// WhisperProvider transcribes audio through the OpenAI Whisper API.
type WhisperProvider struct {
	baseURL string
	apiKey  string
	cost    float64
	client  *commonhttp.Client
}

func NewWhisperProvider(baseURL, apiKey string, costPerCall float64, client *commonhttp.Client) *WhisperProvider {
	return &WhisperProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		cost:    costPerCall,
		client:  client,
	}
}

func (p *WhisperProvider) Name() string { return "whisper" }

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (p *WhisperProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*models.Transcript, error) {
	format := opts.AudioFormat
	if format == "" {
		format = "wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	writer.WriteField("model", "whisper-1")
	if opts.Language != "" {
		writer.WriteField("language", opts.Language)
	}
	writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
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

	var body whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	text := strings.TrimSpace(body.Text)
	if text == "" {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse,
			fmt.Errorf("empty transcript"))
	}

	return &models.Transcript{
		Provider: p.Name(),
		Text:     text,
		Language: body.Language,
		// Whisper does not return a confidence; use a fixed prior so
		// downstream fusion still has a signal to weigh.
		Confidence: 0.9,
		CostUSD:    p.cost,
	}, nil
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
