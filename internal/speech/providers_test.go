package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-discovery/internal/common/errors"
	commonhttp "product-discovery/internal/common/http"
)

func TestWhisperProviderParsesTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"find red running shoes","language":"en"}`))
	}))
	defer server.Close()

	p := NewWhisperProvider(server.URL, "test-key", 0.006, commonhttp.NewClient(5*time.Second))
	transcript, err := p.Transcribe(context.Background(), []byte("fake-audio"), Options{AudioFormat: "wav"})
	require.NoError(t, err)

	assert.Equal(t, "whisper", transcript.Provider)
	assert.Equal(t, "find red running shoes", transcript.Text)
	assert.Equal(t, "en", transcript.Language)
	assert.InDelta(t, 0.006, transcript.CostUSD, 1e-9)
}

func TestWhisperProviderEmptyTranscriptIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer server.Close()

	p := NewWhisperProvider(server.URL, "k", 0.006, commonhttp.NewClient(5*time.Second))
	_, err := p.Transcribe(context.Background(), []byte("audio"), Options{})
	require.Error(t, err)

	pe, ok := errors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ProviderInvalidResponse, pe.Kind)
}

func TestWhisperProviderAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewWhisperProvider(server.URL, "bad-key", 0.006, commonhttp.NewClient(5*time.Second))
	_, err := p.Transcribe(context.Background(), []byte("audio"), Options{})
	require.Error(t, err)

	pe, ok := errors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ProviderAuthError, pe.Kind)
	assert.True(t, pe.IsFatal())
}

func TestDeepgramProviderParsesTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/mp3", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results":{"channels":[{"alternatives":[{"transcript":"compare iphone and pixel","confidence":0.93}]}]},
			"metadata":{"detected_language":"en"}
		}`))
	}))
	defer server.Close()

	p := NewDeepgramProvider(server.URL, "test-key", 0.006, commonhttp.NewClient(5*time.Second))
	transcript, err := p.Transcribe(context.Background(), []byte("fake-audio"), Options{AudioFormat: "mp3"})
	require.NoError(t, err)

	assert.Equal(t, "deepgram", transcript.Provider)
	assert.Equal(t, "compare iphone and pixel", transcript.Text)
	assert.InDelta(t, 0.93, transcript.Confidence, 1e-9)
	assert.Equal(t, "en", transcript.Language)
}

func TestDeepgramProviderNoAlternativesIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer server.Close()

	p := NewDeepgramProvider(server.URL, "k", 0.006, commonhttp.NewClient(5*time.Second))
	_, err := p.Transcribe(context.Background(), []byte("audio"), Options{})
	require.Error(t, err)

	pe, ok := errors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ProviderInvalidResponse, pe.Kind)
}
