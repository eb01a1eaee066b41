package store

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// Store persists voice samples. Samples are immutable once saved.
type Store interface {
	// Save validates and persists audio, returning the stored sample with its new ID
	Save(ctx context.Context, audio []byte, format voice.Format) (*voice.Sample, error)

	// Get returns the sample for id, or an error wrapping voice.ErrNotFound
	Get(ctx context.Context, id string) (*voice.Sample, error)

	// List yields sample metadata ordered by creation time. Each range
	// starts a fresh listing.
	List(ctx context.Context) iter.Seq2[voice.Metadata, error]

	// Delete removes a sample, or returns an error wrapping voice.ErrNotFound
	Delete(ctx context.Context, id string) error
}

// Option configures a store backend
type Option func(*options)

type options struct {
	minDuration time.Duration
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		minDuration: time.Duration(voice.DefaultMinSampleSecs * float64(time.Second)),
		now:         time.Now,
	}
}

// WithMinDuration rejects samples whose known duration is shorter than d
func WithMinDuration(d time.Duration) Option {
	return func(o *options) {
		o.minDuration = d
	}
}

// WithClock overrides the time source used for CreatedAt
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New opens the backend selected by cfg
func New(ctx context.Context, cfg voice.StorageConfig, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir, opts...)
	case "s3":
		if cfg.S3 == nil {
			return nil, fmt.Errorf("s3 storage backend selected but storage.s3 is not configured")
		}
		return NewObjectStore(ctx, *cfg.S3, opts...)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// Collect drains a listing into a slice, stopping at the first error
func Collect(seq iter.Seq2[voice.Metadata, error]) ([]voice.Metadata, error) {
	var out []voice.Metadata
	for m, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// prepare checks audio before it is written and normalizes its format.
// Raw PCM is wrapped in a WAV container so it can be played back and uploaded.
func prepare(audio []byte, format voice.Format, minDuration time.Duration) ([]byte, voice.Format, error) {
	if len(audio) == 0 {
		return nil, format, fmt.Errorf("empty recording: %w", voice.ErrInvalidAudio)
	}

	if format.Encoding == "" {
		format.Encoding = sniffEncoding(audio)
		if format.Encoding == "" {
			return nil, format, fmt.Errorf("unrecognized audio encoding: %w", voice.ErrInvalidAudio)
		}
	}

	switch format.Encoding {
	case voice.EncodingPCM:
		if format.SampleRate <= 0 {
			return nil, format, fmt.Errorf("raw PCM needs a sample rate: %w", voice.ErrInvalidAudio)
		}
		if format.Channels <= 0 {
			format.Channels = 1
		}
		audio = voice.EncodeWAV(audio, format.SampleRate, format.Channels, 16)
		format.Encoding = voice.EncodingWAV
		fallthrough
	case voice.EncodingWAV:
		probed, err := voice.ProbeWAV(audio)
		if err != nil {
			return nil, format, fmt.Errorf("malformed WAV: %v: %w", err, voice.ErrInvalidAudio)
		}
		if probed.Duration == 0 {
			return nil, format, fmt.Errorf("WAV contains no samples: %w", voice.ErrInvalidAudio)
		}
		format = probed
	}

	if format.Duration > 0 && format.Duration < minDuration {
		return nil, format, fmt.Errorf("recording is %s, need at least %s: %w",
			format.Duration.Round(time.Millisecond), minDuration, voice.ErrInvalidAudio)
	}
	if format.Duration == 0 {
		log.Debug().Str("encoding", string(format.Encoding)).Msg("Sample duration unknown, skipping length check")
	}

	return audio, format, nil
}

var magic = []struct {
	prefix   []byte
	encoding voice.Encoding
}{
	{[]byte("RIFF"), voice.EncodingWAV},
	{[]byte("ID3"), voice.EncodingMP3},
	{[]byte{0xFF, 0xFB}, voice.EncodingMP3},
	{[]byte{0xFF, 0xF3}, voice.EncodingMP3},
	{[]byte("OggS"), voice.EncodingOGG},
	{[]byte("fLaC"), voice.EncodingFLAC},
	{[]byte{0x1A, 0x45, 0xDF, 0xA3}, voice.EncodingWebM},
}

func sniffEncoding(audio []byte) voice.Encoding {
	for _, m := range magic {
		if bytes.HasPrefix(audio, m.prefix) {
			return m.encoding
		}
	}
	return ""
}
