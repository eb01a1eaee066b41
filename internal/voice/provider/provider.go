package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// BasicSynthesizer speaks text with a stock or default provider voice
type BasicSynthesizer interface {
	// Name returns the provider name
	Name() string

	// Synthesize generates audio from text and returns an audio stream
	Synthesize(ctx context.Context, text string, cred voice.Credential, opts Options) (io.ReadCloser, error)
}

// CloneSynthesizer speaks text in the voice captured by a stored sample.
// Closing the returned stream releases any provider-side resources created
// for the request.
type CloneSynthesizer interface {
	Name() string
	SynthesizeCloned(ctx context.Context, text string, sample *voice.Sample, cred voice.Credential, opts Options) (io.ReadCloser, error)
}

// VoiceLister is implemented by providers that can enumerate their stock voices
type VoiceLister interface {
	ListVoices(ctx context.Context, cred voice.Credential) ([]Voice, error)
}

// Voice represents a voice option
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Description string `json:"description,omitempty"`
}

// Options contains options for text synthesis. Zero values mean provider default.
type Options struct {
	Voice    string  `json:"voice,omitempty"`
	Model    string  `json:"model,omitempty"`
	Format   string  `json:"format,omitempty"` // Output format (mp3, wav, ogg, pcm)
	Speed    float64 `json:"speed,omitempty"`  // Speed multiplier (0.25-4.0)
	Language string  `json:"language,omitempty"`

	// ElevenLabs voice settings
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool   `json:"use_speaker_boost,omitempty"`

	// Amazon Polly
	Engine     string `json:"engine,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
}

// Merge returns o with empty fields filled from defaults
func (o Options) Merge(defaults Options) Options {
	if o.Voice == "" {
		o.Voice = defaults.Voice
	}
	if o.Model == "" {
		o.Model = defaults.Model
	}
	if o.Format == "" {
		o.Format = defaults.Format
	}
	if o.Speed == 0 {
		o.Speed = defaults.Speed
	}
	if o.Language == "" {
		o.Language = defaults.Language
	}
	if o.Stability == 0 {
		o.Stability = defaults.Stability
	}
	if o.SimilarityBoost == 0 {
		o.SimilarityBoost = defaults.SimilarityBoost
	}
	if o.Style == 0 {
		o.Style = defaults.Style
	}
	if o.UseSpeakerBoost == nil {
		o.UseSpeakerBoost = defaults.UseSpeakerBoost
	}
	if o.Engine == "" {
		o.Engine = defaults.Engine
	}
	if o.SampleRate == "" {
		o.SampleRate = defaults.SampleRate
	}
	return o
}

// OptionsFromConfig converts provider configuration into synthesis defaults
func OptionsFromConfig(cfg *voice.ProviderConfig) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Voice:           cfg.Voice,
		Model:           cfg.Model,
		Format:          cfg.Format,
		Speed:           cfg.Speed,
		Language:        cfg.Language,
		Stability:       cfg.Stability,
		SimilarityBoost: cfg.SimilarityBoost,
		Style:           cfg.Style,
		UseSpeakerBoost: cfg.UseSpeakerBoost,
		Engine:          cfg.Engine,
		SampleRate:      cfg.SampleRate,
	}
}

// FormatSupporter is implemented by providers that cannot produce every
// voice.AudioFormat. Providers without it handle all of them.
type FormatSupporter interface {
	SupportsFormat(f voice.AudioFormat) bool
}

// Supports reports whether p can produce audio in format f
func Supports(p any, f voice.AudioFormat) bool {
	if fs, ok := p.(FormatSupporter); ok {
		return fs.SupportsFormat(f)
	}
	return true
}

// outputFormat resolves opts.Format and checks that p can produce it
func outputFormat(p any, opts Options) (voice.AudioFormat, error) {
	f, ok := voice.ParseAudioFormat(opts.Format)
	if !ok || !Supports(p, f) {
		return "", fmt.Errorf("unsupported audio format %q: %w", opts.Format, voice.ErrValidation)
	}
	return f, nil
}
