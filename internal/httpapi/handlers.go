package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

type sampleResponse struct {
	ID         string    `json:"id"`
	Encoding   string    `json:"encoding"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Channels   int       `json:"channels,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toSampleResponse(m voice.Metadata) sampleResponse {
	return sampleResponse{
		ID:         m.ID,
		Encoding:   string(m.Format.Encoding),
		SampleRate: m.Format.SampleRate,
		Channels:   m.Format.Channels,
		DurationMs: m.Format.Duration.Milliseconds(),
		Size:       m.Size,
		SHA256:     m.SHA256,
		CreatedAt:  m.CreatedAt,
	}
}

type speechRequest struct {
	Text     string `json:"text"`
	Mode     string `json:"mode"`
	VoiceRef string `json:"voice_ref"`
	Voice    string `json:"voice"`
	Provider string `json:"provider"`
	Format   string `json:"format"`
}

type errorResponse struct {
	Error   voice.Kind `json:"error"`
	Message string     `json:"message"`
	Detail  string     `json:"detail,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) saveSample(w http.ResponseWriter, r *http.Request) {
	format, err := formatFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, voice.Invalid(fmt.Sprintf("sample exceeds %d bytes", tooLarge.Limit), nil))
			return
		}
		writeError(w, r, voice.Invalid("failed to read body", err))
		return
	}

	meta, err := s.samples.Save(r.Context(), audio, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSampleResponse(meta.Metadata))
}

// formatFromRequest reads the encoding from Content-Type and the PCM/duration
// hints from the query string
func formatFromRequest(r *http.Request) (voice.Format, error) {
	f := voice.Format{Encoding: voice.ParseEncoding(r.Header.Get("Content-Type"))}
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"sample_rate", &f.SampleRate},
		{"channels", &f.Channels},
	} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, voice.Invalid(fmt.Sprintf("%s must be a non-negative integer", p.name), nil)
			}
			*p.dst = n
		}
	}
	if v := q.Get("duration_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			return f, voice.Invalid("duration_ms must be a non-negative integer", nil)
		}
		f.Duration = time.Duration(ms) * time.Millisecond
	}
	return f, nil
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	samples := []sampleResponse{}
	for m, err := range s.samples.List(r.Context()) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		samples = append(samples, toSampleResponse(m))
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) getSample(w http.ResponseWriter, r *http.Request) {
	sample, err := s.samples.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSampleResponse(sample.Metadata))
}

func (s *Server) getSampleAudio(w http.ResponseWriter, r *http.Request) {
	sample, err := s.samples.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", sample.Format.Encoding.MimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(sample.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sample.Audio)
}

func (s *Server) deleteSample(w http.ResponseWriter, r *http.Request) {
	if err := s.samples.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) speak(w http.ResponseWriter, r *http.Request) {
	var body speechRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, r, voice.Invalid("request body must be JSON", err))
		return
	}

	result, err := s.synth.Synthesize(r.Context(), voice.Request{
		Text:       body.Text,
		Mode:       voice.Mode(body.Mode),
		VoiceRef:   body.VoiceRef,
		Voice:      body.Voice,
		Provider:   body.Provider,
		Format:     voice.AudioFormat(body.Format),
		Credential: voice.Credential(r.Header.Get(apiKeyHeader)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.Format.MimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("X-Voice-Mode", string(result.Mode))
	w.Header().Set("X-Provider", result.Provider)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

func (s *Server) listVoices(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	if name == "" {
		name = s.defaultProvider
	}
	lister, ok := s.voices.Lister(name)
	if !ok {
		writeError(w, r, voice.Invalid(fmt.Sprintf("provider %q cannot list voices", name), nil))
		return
	}

	cred := voice.Credential(r.Header.Get(apiKeyHeader))
	if cred == "" {
		cred = s.credentials[name]
	}
	voices, err := lister.ListVoices(r.Context(), cred)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voices)
}

func statusFor(kind voice.Kind) int {
	switch kind {
	case voice.KindValidation, voice.KindInvalidAudio:
		return http.StatusBadRequest
	case voice.KindNotFound:
		return http.StatusNotFound
	case voice.KindAuth:
		return http.StatusUnauthorized
	case voice.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case voice.KindPlanRequired:
		return http.StatusPaymentRequired
	case voice.KindProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := voice.KindOf(err)
	status := statusFor(kind)

	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Warn()
	}
	ev.Err(err).
		Str("request_id", RequestIDFrom(r.Context())).
		Str("kind", string(kind)).
		Msg("Request failed")

	resp := errorResponse{Error: kind, Message: voice.Message(err)}
	if status != http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}
