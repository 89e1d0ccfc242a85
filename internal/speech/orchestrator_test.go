package speech

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/config"
	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

type fakeProvider struct {
	name   string
	text   string
	errs   []error
	calls  int
	scored float64
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*models.Transcript, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Transcript{Provider: f.name, Text: f.text, Confidence: f.scored}, nil
}

func chainConfig() config.ProviderChainConfig {
	return config.ProviderChainConfig{Policy: "fallback", Timeout: 1000}
}

func TestTranscribeUsesFirstProviderWhenHealthy(t *testing.T) {
	primary := &fakeProvider{name: "whisper", text: "find red shoes", scored: 0.9}
	secondary := &fakeProvider{name: "deepgram", text: "other", scored: 0.8}

	o, err := NewOrchestrator([]Provider{primary, secondary}, chainConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	transcript, err := o.Transcribe(context.Background(), []byte("audio"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "whisper", transcript.Provider)
	assert.Equal(t, "find red shoes", transcript.Text)
	assert.Equal(t, 0, secondary.calls)
}

func TestTranscribeFallsBackOnTimeout(t *testing.T) {
	primary := &fakeProvider{
		name: "whisper",
		errs: []error{errors.NewProviderError("whisper", errors.ProviderTimeout, fmt.Errorf("deadline"))},
	}
	secondary := &fakeProvider{name: "deepgram", text: "find red shoes", scored: 0.8}

	o, err := NewOrchestrator([]Provider{primary, secondary}, chainConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	transcript, err := o.Transcribe(context.Background(), []byte("audio"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "deepgram", transcript.Provider)
}

func TestTranscribeAuthErrorIsFatal(t *testing.T) {
	primary := &fakeProvider{
		name: "whisper",
		errs: []error{errors.NewProviderError("whisper", errors.ProviderAuthError, fmt.Errorf("401"))},
	}
	secondary := &fakeProvider{name: "deepgram", text: "x", scored: 0.8}

	o, err := NewOrchestrator([]Provider{primary, secondary}, chainConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = o.Transcribe(context.Background(), []byte("audio"), Options{})
	require.Error(t, err)
	assert.Equal(t, 0, secondary.calls)
}

func TestTranscribeRetriesInvalidResponseOnce(t *testing.T) {
	primary := &fakeProvider{
		name:   "whisper",
		text:   "find red shoes",
		scored: 0.9,
		errs: []error{
			errors.NewProviderError("whisper", errors.ProviderInvalidResponse, fmt.Errorf("empty")),
			nil,
		},
	}

	o, err := NewOrchestrator([]Provider{primary}, chainConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	transcript, err := o.Transcribe(context.Background(), []byte("audio"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, "whisper", transcript.Provider)
}

func TestTranscribeAllProvidersFailed(t *testing.T) {
	fail := errors.NewProviderError("p", errors.ProviderUnavailable, fmt.Errorf("503"))
	primary := &fakeProvider{name: "whisper", errs: []error{fail}}
	secondary := &fakeProvider{name: "deepgram", errs: []error{fail}}

	o, err := NewOrchestrator([]Provider{primary, secondary}, chainConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = o.Transcribe(context.Background(), []byte("audio"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(errors.ErrCodeAllProvidersFailed))
}
