package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// fakeElevenLabs records calls against a minimal ElevenLabs API
type fakeElevenLabs struct {
	mu        sync.Mutex
	calls     []string
	ttsVoice  string
	ttsBody   ElevenLabsTTSRequest
	ttsQuery  string
	addName   string
	addFile   []byte
	addType   string
	deleted   []string
	addStatus int
	addBody   string
	ttsStatus int
	ttsErrBody  string
}

func (f *fakeElevenLabs) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": {"status": "invalid_api_key", "message": "Invalid API key"}}`))
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/voices/add":
			if f.addStatus != 0 {
				w.WriteHeader(f.addStatus)
				w.Write([]byte(f.addBody))
				return
			}
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f.addName = r.FormValue("name")
			file, header, err := r.FormFile("files")
			require.NoError(t, err)
			f.addType = header.Header.Get("Content-Type")
			f.addFile, _ = io.ReadAll(file)
			w.Write([]byte(`{"voice_id": "cloned123"}`))

		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/text-to-speech/"):
			f.ttsVoice = strings.TrimPrefix(r.URL.Path, "/text-to-speech/")
			f.ttsQuery = r.URL.Query().Get("output_format")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.ttsBody))
			if f.ttsStatus != 0 {
				w.WriteHeader(f.ttsStatus)
				w.Write([]byte(f.ttsErrBody))
				return
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("mock audio data"))

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/voices/"):
			f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/voices/"))
			w.Write([]byte(`{"status": "ok"}`))

		case r.Method == http.MethodGet && r.URL.Path == "/voices":
			w.Write([]byte(`{
				"voices": [
					{"voice_id": "voice1", "name": "Test Voice", "labels": {"gender": "female"}, "description": "A test voice"},
					{"voice_id": "tmp", "name": "TempClonedVoice-v3"},
					{"voice_id": "off", "name": "Disabled", "available_for_tts": false}
				]
			}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeElevenLabs) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestElevenLabs(t *testing.T, f *fakeElevenLabs) *ElevenLabsProvider {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	p := NewElevenLabsProvider(Options{})
	p.baseURL = server.URL
	return p
}

func testSample() *voice.Sample {
	audio := voice.EncodeWAV(make([]byte, 16000), 8000, 1, 16)
	return &voice.Sample{
		Metadata: voice.Metadata{ID: "v1", Format: voice.Format{Encoding: voice.EncodingWAV}, Size: int64(len(audio))},
		Audio:    audio,
	}
}

func TestElevenLabsProvider_Name(t *testing.T) {
	assert.Equal(t, "elevenlabs", NewElevenLabsProvider(Options{}).Name())
}

func TestElevenLabsProvider_Synthesize(t *testing.T) {
	t.Run("uses stock voice and default settings", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		reader, err := p.Synthesize(context.Background(), "Hello world", "test-api-key", Options{})
		require.NoError(t, err)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		reader.Close()

		assert.Equal(t, "mock audio data", string(data))
		assert.Equal(t, ElevenLabsDefaultVoice, f.ttsVoice)
		assert.Equal(t, "mp3_44100_128", f.ttsQuery)
		assert.Equal(t, "Hello world", f.ttsBody.Text)
		assert.Equal(t, ElevenLabsDefaultModel, f.ttsBody.ModelID)
		assert.Equal(t, VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Style: 0, UseSpeakerBoost: true}, f.ttsBody.VoiceSettings)
	})

	t.Run("request options override configured defaults", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)
		p.defaults = Options{Voice: "configured", Stability: 0.3}
		off := false

		reader, err := p.Synthesize(context.Background(), "Hi", "test-api-key", Options{
			Voice:           "requested",
			Format:          "wav",
			UseSpeakerBoost: &off,
		})
		require.NoError(t, err)
		reader.Close()

		assert.Equal(t, "requested", f.ttsVoice)
		assert.Equal(t, "pcm_44100", f.ttsQuery)
		assert.Equal(t, 0.3, f.ttsBody.VoiceSettings.Stability)
		assert.False(t, f.ttsBody.VoiceSettings.UseSpeakerBoost)
	})

	t.Run("missing credential makes no call", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		_, err := p.Synthesize(context.Background(), "Hello", "", Options{})
		assert.ErrorIs(t, err, voice.ErrAuth)
		assert.Zero(t, f.callCount())
	})

	t.Run("empty text", func(t *testing.T) {
		p := NewElevenLabsProvider(Options{})
		_, err := p.Synthesize(context.Background(), "", "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrValidation)
	})

	t.Run("unreachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		p := NewElevenLabsProvider(Options{})
		p.baseURL = server.URL
		server.Close()

		_, err := p.Synthesize(context.Background(), "Hello", "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrProviderUnavailable)
	})
}

func TestElevenLabsProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		cred   voice.Credential
		status int
		body   string
		want   error
	}{
		{"invalid key", "wrong-key", 0, "", voice.ErrAuth},
		{"quota status", "test-api-key", http.StatusBadRequest, `{"detail": {"status": "quota_exceeded", "message": "This request exceeds your quota"}}`, voice.ErrQuotaExceeded},
		{"rate limited", "test-api-key", http.StatusTooManyRequests, `{"detail": {"status": "too_many_concurrent_requests"}}`, voice.ErrQuotaExceeded},
		{"payment required", "test-api-key", http.StatusPaymentRequired, ``, voice.ErrQuotaExceeded},
		{"forbidden outside registration", "test-api-key", http.StatusForbidden, `{"detail": "forbidden"}`, voice.ErrProviderUnavailable},
		{"server error", "test-api-key", http.StatusInternalServerError, `oops`, voice.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeElevenLabs{ttsStatus: tt.status, ttsErrBody: tt.body}
			p := newTestElevenLabs(t, f)

			_, err := p.Synthesize(context.Background(), "Hello", tt.cred, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "elevenlabs", apiErr.Provider)
			assert.NotZero(t, apiErr.StatusCode)
		})
	}
}

func TestElevenLabsProvider_SynthesizeCloned(t *testing.T) {
	t.Run("registers, speaks and deletes on close", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)
		sample := testSample()

		reader, err := p.SynthesizeCloned(context.Background(), "Hi", sample, "test-api-key", Options{})
		require.NoError(t, err)

		assert.Equal(t, "TempClonedVoice-v1", f.addName)
		assert.Equal(t, sample.Audio, f.addFile)
		assert.Equal(t, "audio/wav", f.addType)
		assert.Equal(t, "cloned123", f.ttsVoice)
		assert.Empty(t, f.deleted, "voice must live until the stream is consumed")

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "mock audio data", string(data))

		require.NoError(t, reader.Close())
		require.NoError(t, reader.Close())
		assert.Equal(t, []string{"cloned123"}, f.deleted)
	})

	t.Run("cleanup survives a canceled request context", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)
		ctx, cancel := context.WithCancel(context.Background())

		reader, err := p.SynthesizeCloned(ctx, "Hi", testSample(), "test-api-key", Options{})
		require.NoError(t, err)
		cancel()
		reader.Close()

		assert.Equal(t, []string{"cloned123"}, f.deleted)
	})

	t.Run("plan without cloning", func(t *testing.T) {
		f := &fakeElevenLabs{addStatus: http.StatusForbidden, addBody: `{"detail": {"message": "Not allowed"}}`}
		p := newTestElevenLabs(t, f)

		_, err := p.SynthesizeCloned(context.Background(), "Hi", testSample(), "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrPlanRequired)
		assert.Empty(t, f.ttsVoice, "no synthesis after failed registration")
	})

	t.Run("plan status in detail", func(t *testing.T) {
		f := &fakeElevenLabs{
			addStatus: http.StatusBadRequest,
			addBody:   `{"detail": {"status": "can_not_use_instant_voice_cloning", "message": "Your subscription has no access to use instant voice cloning"}}`,
		}
		p := newTestElevenLabs(t, f)

		_, err := p.SynthesizeCloned(context.Background(), "Hi", testSample(), "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrPlanRequired)
	})

	t.Run("synthesis failure still deletes the voice", func(t *testing.T) {
		f := &fakeElevenLabs{ttsStatus: http.StatusInternalServerError, ttsErrBody: "boom"}
		p := newTestElevenLabs(t, f)

		_, err := p.SynthesizeCloned(context.Background(), "Hi", testSample(), "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrProviderUnavailable)
		assert.Equal(t, []string{"cloned123"}, f.deleted)
	})

	t.Run("missing sample audio", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		_, err := p.SynthesizeCloned(context.Background(), "Hi", &voice.Sample{}, "test-api-key", Options{})
		assert.ErrorIs(t, err, voice.ErrInvalidAudio)
		assert.Zero(t, f.callCount())
	})
}

func TestElevenLabsProvider_ListVoices(t *testing.T) {
	t.Run("account voices skip temporary clones", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		voices, err := p.ListVoices(context.Background(), "test-api-key")
		require.NoError(t, err)
		require.Len(t, voices, 1)
		assert.Equal(t, "voice1", voices[0].ID)
		assert.Equal(t, "female", voices[0].Gender)
		assert.Equal(t, "multilingual", voices[0].Language)
	})

	t.Run("pre-built voices without a key", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		voices, err := p.ListVoices(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, GetPrebuiltVoices(), voices)
		assert.Zero(t, f.callCount())
	})

	t.Run("bad key", func(t *testing.T) {
		p := newTestElevenLabs(t, &fakeElevenLabs{})
		_, err := p.ListVoices(context.Background(), "nope")
		assert.ErrorIs(t, err, voice.ErrAuth)
	})
}

func TestConvertToElevenLabsFormat(t *testing.T) {
	assert.Equal(t, "mp3_44100_128", convertToElevenLabsFormat(voice.AudioFormatMP3))
	assert.Equal(t, "pcm_44100", convertToElevenLabsFormat(voice.AudioFormatWAV))
	assert.Equal(t, "pcm_44100", convertToElevenLabsFormat(voice.AudioFormatPCM))
	assert.Equal(t, "opus_48000_128", convertToElevenLabsFormat(voice.AudioFormatOGG))
}

func TestElevenLabsProvider_OutputMatchesFormat(t *testing.T) {
	mock := []byte("mock audio data")

	tests := []struct {
		format    string
		wantQuery string
		want      []byte
	}{
		{"", "mp3_44100_128", mock},
		{"mp3", "mp3_44100_128", mock},
		{"ogg", "opus_48000_128", mock},
		{"pcm", "pcm_44100", mock},
		{"wav", "pcm_44100", voice.EncodeWAV(mock, 44100, 1, 16)},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			f := &fakeElevenLabs{}
			p := newTestElevenLabs(t, f)

			reader, err := p.Synthesize(context.Background(), "Hi", "test-api-key", Options{Format: tt.format})
			require.NoError(t, err)
			data, err := io.ReadAll(reader)
			require.NoError(t, err)
			require.NoError(t, reader.Close())

			assert.Equal(t, tt.wantQuery, f.ttsQuery)
			assert.Equal(t, tt.want, data)
		})
	}

	t.Run("wav output is a playable header over the raw samples", func(t *testing.T) {
		p := newTestElevenLabs(t, &fakeElevenLabs{})

		reader, err := p.Synthesize(context.Background(), "Hi", "test-api-key", Options{Format: "wav"})
		require.NoError(t, err)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		reader.Close()

		format, err := voice.ProbeWAV(data)
		require.NoError(t, err)
		assert.Equal(t, 44100, format.SampleRate)
		assert.Equal(t, 1, format.Channels)
		pcm, err := voice.PCMFromWAV(data)
		require.NoError(t, err)
		assert.Equal(t, mock, pcm)
	})

	t.Run("cloned wav output is wrapped and the voice removed", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		reader, err := p.SynthesizeCloned(context.Background(), "Hi", testSample(), "test-api-key", Options{Format: "wav"})
		require.NoError(t, err)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		require.NoError(t, reader.Close())

		assert.Equal(t, voice.EncodeWAV(mock, 44100, 1, 16), data)
		assert.Equal(t, []string{"cloned123"}, f.deleted)
	})

	t.Run("unknown format is rejected before any call", func(t *testing.T) {
		f := &fakeElevenLabs{}
		p := newTestElevenLabs(t, f)

		_, err := p.SynthesizeCloned(context.Background(), "Hi", testSample(), "test-api-key", Options{Format: "flac"})
		assert.ErrorIs(t, err, voice.ErrValidation)
		assert.Zero(t, f.callCount())
	})
}

func TestElevenLabsError_String(t *testing.T) {
	tests := []struct {
		name   string
		detail interface{}
		want   string
		status string
	}{
		{"string", "bad things", "bad things", ""},
		{"object", map[string]interface{}{"status": "quota_exceeded", "message": "over"}, "over", "quota_exceeded"},
		{"validation list", []interface{}{map[string]interface{}{"msg": "field required"}}, "field required", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ElevenLabsError{Detail: tt.detail}
			assert.Equal(t, tt.want, e.String())
			assert.Equal(t, tt.status, e.Status())
		})
	}
}
