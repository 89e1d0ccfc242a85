package speech

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
	"product-discovery/internal/models"
)

// DeepgramProvider transcribes audio through the Deepgram listen API.
type DeepgramProvider struct {
	baseURL string
	apiKey  string
	cost    float64
	client  *commonhttp.Client
}

func NewDeepgramProvider(baseURL, apiKey string, costPerCall float64, client *commonhttp.Client) *DeepgramProvider {
	return &DeepgramProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		cost:    costPerCall,
		client:  client,
	}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
	Metadata struct {
		DetectedLanguage string `json:"detected_language"`
	} `json:"metadata"`
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*models.Transcript, error) {
	format := opts.AudioFormat
	if format == "" {
		format = "wav"
	}

	url := p.baseURL + "/v1/listen?punctuate=true&detect_language=true"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "audio/"+format)
	req.Header.Set("Authorization", "Token "+p.apiKey)

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

	var body deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse, err)
	}

	if len(body.Results.Channels) == 0 || len(body.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse,
			fmt.Errorf("no transcription alternatives"))
	}

	alt := body.Results.Channels[0].Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return nil, errors.NewProviderError(p.Name(), errors.ProviderInvalidResponse,
			fmt.Errorf("empty transcript"))
	}

	return &models.Transcript{
		Provider:   p.Name(),
		Text:       text,
		Language:   body.Metadata.DetectedLanguage,
		Confidence: alt.Confidence,
		CostUSD:    p.cost,
	}, nil
}
