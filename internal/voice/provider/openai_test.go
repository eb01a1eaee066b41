package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewOpenAIProvider(Options{})
	p.baseURL = server.URL + "/v1"
	return p
}

func TestOpenAIProvider_Name(t *testing.T) {
	assert.Equal(t, "openai", NewOpenAIProvider(Options{}).Name())
}

func TestOpenAIProvider_Synthesize(t *testing.T) {
	t.Run("successful synthesis with defaults", func(t *testing.T) {
		var got map[string]interface{}
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/audio/speech", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("mock audio data"))
		})

		reader, err := p.Synthesize(context.Background(), "Hello world", "sk-test", Options{})
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "mock audio data", string(data))

		assert.Equal(t, "tts-1", got["model"])
		assert.Equal(t, "Hello world", got["input"])
		assert.Equal(t, "alloy", got["voice"])
		assert.Equal(t, "mp3", got["response_format"])
		assert.Equal(t, 1.0, got["speed"])
	})

	t.Run("speed is clamped", func(t *testing.T) {
		var got map[string]interface{}
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte("audio"))
		})

		reader, err := p.Synthesize(context.Background(), "Hi", "sk-test", Options{Speed: 9, Voice: "nova"})
		require.NoError(t, err)
		reader.Close()

		assert.Equal(t, 4.0, got["speed"])
		assert.Equal(t, "nova", got["voice"])
	})

	t.Run("missing credential makes no call", func(t *testing.T) {
		called := false
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		_, err := p.Synthesize(context.Background(), "Hi", "", Options{})
		assert.ErrorIs(t, err, voice.ErrAuth)
		assert.False(t, called)
	})
}

func TestOpenAIProvider_OutputMatchesFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", "mp3"},
		{"wav", "wav"},
		{"pcm", "pcm"},
		{"ogg", "opus"},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			var got map[string]interface{}
			p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Write([]byte("audio in " + got["response_format"].(string)))
			})

			reader, err := p.Synthesize(context.Background(), "Hi", "sk-test", Options{Format: tt.format})
			require.NoError(t, err)
			data, err := io.ReadAll(reader)
			require.NoError(t, err)
			reader.Close()

			assert.Equal(t, tt.want, got["response_format"])
			assert.Equal(t, "audio in "+tt.want, string(data))
		})
	}

	t.Run("unknown format makes no call", func(t *testing.T) {
		called := false
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		_, err := p.Synthesize(context.Background(), "Hi", "sk-test", Options{Format: "flac"})
		assert.ErrorIs(t, err, voice.ErrValidation)
		assert.False(t, called)
	})
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid key", http.StatusUnauthorized, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`, voice.ErrAuth},
		{"insufficient quota", http.StatusTooManyRequests, `{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota", "code": "insufficient_quota"}}`, voice.ErrQuotaExceeded},
		{"server error", http.StatusInternalServerError, `{"error": {"message": "The server had an error", "type": "server_error"}}`, voice.ErrProviderUnavailable},
		{"unparseable", http.StatusBadGateway, `<html>bad gateway</html>`, voice.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.Synthesize(context.Background(), "Hi", "sk-test", Options{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIProvider_ListVoices(t *testing.T) {
	voices, err := NewOpenAIProvider(Options{}).ListVoices(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, voices, 6)
	assert.Equal(t, "alloy", voices[0].ID)
}
