// Package normalizer validates raw multimodal payloads and shapes them
// into canonical queries.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

type Normalizer struct {
	limits config.LimitsConfig
	logger logger.Logger
}

func New(limits config.LimitsConfig, log logger.Logger) *Normalizer {
	return &Normalizer{
		limits: limits,
		logger: log.WithFields(map[string]interface{}{"stage": "normalizer"}),
	}
}

// Normalize validates the request and returns an immutable Query.
// Every failure is a ValidationError; no downstream stage runs after one.
func (n *Normalizer) Normalize(req *models.Request) (*models.Query, error) {
	if req == nil {
		return nil, errors.NewValidationError("request is nil")
	}

	var modalities []models.Modality

	text := strings.TrimSpace(req.Text)
	if text != "" {
		if len(text) > n.limits.MaxTextLength {
			return nil, errors.NewValidationError(
				fmt.Sprintf("text length %d exceeds maximum %d", len(text), n.limits.MaxTextLength))
		}
		modalities = append(modalities, models.ModalityText)
	}

	if len(req.ImageData) > 0 {
		if len(req.ImageData) > n.limits.MaxImageBytes {
			return nil, errors.NewValidationError(
				fmt.Sprintf("image size %d exceeds maximum %d bytes", len(req.ImageData), n.limits.MaxImageBytes))
		}
		format := req.ImageFormat
		if format == "" {
			format = sniffImageFormat(req.ImageData)
		}
		if !containsFormat(n.limits.ImageFormats, format) {
			return nil, errors.NewValidationError(
				fmt.Sprintf("unsupported image format %q", format))
		}
		req.ImageFormat = format
		modalities = append(modalities, models.ModalityImage)
	}

	if len(req.AudioData) > 0 {
		if len(req.AudioData) > n.limits.MaxAudioBytes {
			return nil, errors.NewValidationError(
				fmt.Sprintf("audio size %d exceeds maximum %d bytes", len(req.AudioData), n.limits.MaxAudioBytes))
		}
		if !containsFormat(n.limits.AudioFormats, req.AudioFormat) {
			return nil, errors.NewValidationError(
				fmt.Sprintf("unsupported audio format %q", req.AudioFormat))
		}
		modalities = append(modalities, models.ModalityAudio)
	}

	if len(modalities) == 0 {
		return nil, errors.NewValidationError("at least one of text, image or audio must be present")
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = n.limits.DefaultResults
	}
	if maxResults > n.limits.MaxResultsCap {
		maxResults = n.limits.MaxResultsCap
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	query := &models.Query{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Modalities:  modalities,
		Text:        text,
		ImageData:   req.ImageData,
		ImageFormat: req.ImageFormat,
		AudioData:   req.AudioData,
		AudioFormat: req.AudioFormat,
		MaxResults:  maxResults,
		Filters:     req.Filters,
		SessionID:   sessionID,
	}

	n.logger.Debug("query normalized", map[string]interface{}{
		"queryId":    query.ID,
		"sessionId":  query.SessionID,
		"modalities": query.Modalities,
	})

	return query, nil
}

func containsFormat(allowed []string, format string) bool {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	for _, f := range allowed {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// sniffImageFormat falls back to magic-byte detection when the caller
// did not declare a format.
func sniffImageFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "png"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	default:
		return ""
	}
}
