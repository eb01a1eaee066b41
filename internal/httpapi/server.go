// Package httpapi exposes the sample store and the request coordinator over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
	"github.com/ursnani/Voice-Cloning/internal/voice/provider"
	"github.com/ursnani/Voice-Cloning/internal/voice/store"
)

// DefaultMaxUpload caps the size of an uploaded sample
const DefaultMaxUpload = 50 << 20

const shutdownTimeout = 10 * time.Second

// Synthesizer runs synthesis requests
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.Request) (*voice.Result, error)
}

// VoiceCatalog finds providers that can list stock voices
type VoiceCatalog interface {
	Lister(name string) (provider.VoiceLister, bool)
}

// Server holds the handlers' dependencies
type Server struct {
	samples         store.Store
	synth           Synthesizer
	voices          VoiceCatalog
	defaultProvider string
	credentials     map[string]voice.Credential
	allowedOrigins  []string
	maxUpload       int64
}

// Option configures a Server
type Option func(*Server)

// WithDefaultProvider sets the provider used by GET /api/voices without ?provider=
func WithDefaultProvider(name string) Option {
	return func(s *Server) {
		s.defaultProvider = name
	}
}

// WithCredentials sets session API keys used when a request carries no X-API-Key
func WithCredentials(creds map[string]voice.Credential) Option {
	return func(s *Server) {
		s.credentials = creds
	}
}

// WithAllowedOrigins sets the CORS origins
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithMaxUpload limits uploaded sample size in bytes
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// New creates a server
func New(samples store.Store, synth Synthesizer, voices VoiceCatalog, opts ...Option) *Server {
	s := &Server{
		samples:         samples,
		synth:           synth,
		voices:          voices,
		defaultProvider: voice.DefaultProvider,
		allowedOrigins:  []string{"*"},
		maxUpload:       DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestID,
		accessLog,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", apiKeyHeader, requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "X-Voice-Mode", "X-Provider"},
		}),
	)

	r.Get("/healthz", s.health)

	r.Route("/api", func(api chi.Router) {
		api.Route("/samples", func(sr chi.Router) {
			sr.Post("/", s.saveSample)
			sr.Get("/", s.listSamples)
			sr.Get("/{id}", s.getSample)
			sr.Get("/{id}/audio", s.getSampleAudio)
			sr.Delete("/{id}", s.deleteSample)
		})
		api.Post("/speech", s.speak)
		api.Get("/voices", s.listVoices)
	})

	return r
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down gracefully
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
