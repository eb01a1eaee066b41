package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/ursnani/Voice-Cloning/internal/voice"
	"github.com/ursnani/Voice-Cloning/internal/voice/provider"
)

// State is a step in a request's lifecycle:
//
//	Received -> Validated -> Dispatched -> Completed
//	    \            \             \-----> Failed
//	     \------------\--------------------^
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Transition describes one state change
type Transition struct {
	RequestID string
	From      State
	To        State
	Err       error // set when To is StateFailed
}

// Hook observes transitions. It runs synchronously on the request goroutine.
type Hook func(Transition)

// SampleSource resolves voice references
type SampleSource interface {
	Get(ctx context.Context, id string) (*voice.Sample, error)
}

// Providers resolves provider names to synthesis variants
type Providers interface {
	Basic(name string) (provider.BasicSynthesizer, error)
	Clone(name string) (provider.CloneSynthesizer, error)
}

// Config holds request limits and session defaults
type Config struct {
	DefaultProvider string
	MaxChars        int
	Timeout         time.Duration
	// Credentials are session API keys by provider, used when a request has none
	Credentials map[string]voice.Credential
	// Formats are configured output formats by provider
	Formats map[string]string
}

// ConfigFrom derives coordinator settings from the config file and environment
func ConfigFrom(cfg *voice.ConfigFile) Config {
	formats := make(map[string]string)
	if cfg != nil {
		for name, pc := range cfg.Providers {
			if pc.Format != "" {
				formats[name] = pc.Format
			}
		}
	}
	return Config{
		DefaultProvider: cfg.GetEffectiveProvider(""),
		MaxChars:        cfg.EffectiveMaxChars(),
		Timeout:         cfg.EffectiveTimeout(),
		Credentials:     provider.SessionCredentials(cfg),
		Formats:         formats,
	}
}

// Coordinator validates synthesis requests and dispatches each one to exactly
// one provider call. It keeps no per-request state between calls.
type Coordinator struct {
	samples   SampleSource
	providers Providers
	cfg       Config
	hook      Hook
	seq       atomic.Uint64
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithHook registers a transition observer
func WithHook(h Hook) Option {
	return func(c *Coordinator) {
		c.hook = h
	}
}

// New creates a coordinator
func New(samples SampleSource, providers Providers, cfg Config, opts ...Option) *Coordinator {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = voice.DefaultMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = voice.DefaultTimeoutSecs * time.Second
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = voice.DefaultProvider
	}
	c := &Coordinator{samples: samples, providers: providers, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// job is a validated request bound to one provider call
type job struct {
	id       string
	text     string
	mode     voice.Mode
	provider string
	sample   *voice.Sample
	call     func(ctx context.Context) (io.ReadCloser, error)
	format   voice.AudioFormat
}

// Synthesize runs a request to completion. The returned error, if any, is
// classified by voice.KindOf; no partial audio is ever returned.
func (c *Coordinator) Synthesize(ctx context.Context, req voice.Request) (*voice.Result, error) {
	id := fmt.Sprintf("req-%d", c.seq.Add(1))
	c.transition(id, "", StateReceived, nil)

	d, err := c.validate(ctx, id, req)
	if err != nil {
		c.transition(id, StateReceived, StateFailed, err)
		return nil, err
	}
	c.transition(id, StateReceived, StateValidated, nil)

	audio, err := c.dispatch(ctx, d)
	if err != nil {
		c.transition(id, StateDispatched, StateFailed, err)
		return nil, err
	}
	c.transition(id, StateDispatched, StateCompleted, nil)

	result := &voice.Result{
		Audio:    audio,
		Format:   d.format,
		Mode:     d.mode,
		Provider: d.provider,
	}
	if d.sample != nil {
		result.VoiceRef = d.sample.ID
	}
	return result, nil
}

func (c *Coordinator) validate(ctx context.Context, id string, req voice.Request) (*job, error) {
	text := norm.NFC.String(req.Text)
	if strings.TrimSpace(text) == "" {
		return nil, voice.Invalid("text is empty", nil)
	}
	if n := utf8.RuneCountInString(text); n > c.cfg.MaxChars {
		return nil, voice.Invalid(fmt.Sprintf("text is %d characters, the maximum is %d", n, c.cfg.MaxChars), nil)
	}

	mode, ok := voice.ParseMode(string(req.Mode))
	if !ok {
		return nil, voice.Invalid(fmt.Sprintf("unknown mode %q", req.Mode), nil)
	}

	name := req.Provider
	if name == "" {
		name = c.cfg.DefaultProvider
	}

	cred := req.Credential
	if cred == "" {
		cred = c.cfg.Credentials[name]
	}

	requested := string(req.Format)
	if requested == "" {
		requested = c.cfg.Formats[name]
	}
	format, ok := voice.ParseAudioFormat(requested)
	if !ok {
		return nil, voice.Invalid(fmt.Sprintf("unknown audio format %q", requested), nil)
	}
	opts := provider.Options{Voice: req.Voice, Format: string(format)}

	d := &job{id: id, text: text, mode: mode, provider: name, format: format}

	switch mode {
	case voice.ModeCloned:
		if req.VoiceRef == "" {
			return nil, voice.Invalid("cloned mode needs a voice reference", nil)
		}
		p, err := c.providers.Clone(name)
		if err != nil {
			return nil, voice.Invalid(err.Error(), nil)
		}
		if !provider.Supports(p, format) {
			return nil, unsupportedFormat(name, format)
		}
		sample, err := c.samples.Get(ctx, req.VoiceRef)
		if err != nil {
			if errors.Is(err, voice.ErrNotFound) {
				return nil, voice.Invalid(fmt.Sprintf("voice reference %q does not resolve to a saved sample", req.VoiceRef), err)
			}
			return nil, fmt.Errorf("failed to load voice sample: %w", err)
		}
		d.sample = sample
		d.call = func(ctx context.Context) (io.ReadCloser, error) {
			return p.SynthesizeCloned(ctx, text, sample, cred, opts)
		}
	default:
		p, err := c.providers.Basic(name)
		if err != nil {
			return nil, voice.Invalid(err.Error(), nil)
		}
		if !provider.Supports(p, format) {
			return nil, unsupportedFormat(name, format)
		}
		if req.VoiceRef != "" {
			log.Debug().Str("request", id).Str("voice_ref", req.VoiceRef).Msg("Voice reference ignored in basic mode")
		}
		d.call = func(ctx context.Context) (io.ReadCloser, error) {
			return p.Synthesize(ctx, text, cred, opts)
		}
	}

	return d, nil
}

func unsupportedFormat(name string, format voice.AudioFormat) error {
	return voice.Invalid(fmt.Sprintf("provider %s cannot produce %s audio", name, format), nil)
}

func (c *Coordinator) dispatch(ctx context.Context, d *job) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.transition(d.id, StateValidated, StateDispatched, nil)

	start := time.Now()
	log.Debug().
		Str("request", d.id).
		Str("provider", d.provider).
		Str("mode", string(d.mode)).
		Int("text_len", utf8.RuneCountInString(d.text)).
		Msg("Dispatching synthesis request")

	stream, err := d.call(ctx)
	if err != nil {
		return nil, classify(d.provider, err)
	}

	audio, readErr := io.ReadAll(stream)
	// Close releases provider resources such as temporary voices
	closeErr := stream.Close()
	if readErr != nil {
		return nil, classify(d.provider, fmt.Errorf("failed to read audio: %w", readErr))
	}
	if closeErr != nil {
		log.Debug().Err(closeErr).Str("request", d.id).Msg("Audio stream close failed")
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s returned no audio: %w", d.provider, voice.ErrProviderUnavailable)
	}

	log.Debug().
		Str("request", d.id).
		Int("audio_bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis completed")

	return audio, nil
}

// classify keeps taxonomy errors and reports everything else, timeouts
// included, as the provider being unavailable
func classify(name string, err error) error {
	if voice.KindOf(err) != voice.KindInternal {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w: %w", name, voice.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", name, voice.ErrProviderUnavailable, err)
}

func (c *Coordinator) transition(id string, from, to State, err error) {
	ev := log.Debug().Str("request", id).Str("from", string(from)).Str("to", string(to))
	if err != nil {
		ev = ev.Err(err).Str("kind", string(voice.KindOf(err)))
	}
	ev.Msg("Request state changed")

	if c.hook != nil {
		c.hook(Transition{RequestID: id, From: from, To: to, Err: err})
	}
}
