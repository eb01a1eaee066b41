package voice

import (
	"strings"
	"time"
)

// Encoding identifies the container/codec of a recorded sample
type Encoding string

const (
	EncodingWAV  Encoding = "wav"
	EncodingMP3  Encoding = "mp3"
	EncodingOGG  Encoding = "ogg"
	EncodingFLAC Encoding = "flac"
	EncodingWebM Encoding = "webm"
	EncodingPCM  Encoding = "pcm"
)

// Extension returns the file extension used when persisting this encoding
func (e Encoding) Extension() string {
	if e == "" {
		return "bin"
	}
	return string(e)
}

// MimeType returns the content type sent to providers for this encoding
func (e Encoding) MimeType() string {
	switch e {
	case EncodingWAV:
		return "audio/wav"
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingOGG:
		return "audio/ogg"
	case EncodingFLAC:
		return "audio/flac"
	case EncodingWebM:
		return "audio/webm"
	case EncodingPCM:
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}

// ParseEncoding maps a file extension or content type to an Encoding.
// Unknown values return an empty Encoding.
func ParseEncoding(s string) Encoding {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, ".")
	switch s {
	case "wav", "wave", "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return EncodingWAV
	case "mp3", "mpeg", "audio/mpeg", "audio/mp3":
		return EncodingMP3
	case "ogg", "audio/ogg":
		return EncodingOGG
	case "flac", "audio/flac", "audio/x-flac":
		return EncodingFLAC
	case "webm", "audio/webm":
		return EncodingWebM
	case "pcm", "raw", "audio/pcm", "audio/l16":
		return EncodingPCM
	default:
		return ""
	}
}

// Format describes a recorded sample
type Format struct {
	Encoding   Encoding      `json:"encoding"`
	SampleRate int           `json:"sample_rate,omitempty"` // Hz
	Channels   int           `json:"channels,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Metadata is everything known about a sample except its audio bytes
type Metadata struct {
	ID        string    `json:"id"`
	Format    Format    `json:"format"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sample is a persisted voice recording. It is never mutated after creation.
type Sample struct {
	Metadata
	Audio []byte `json:"-"`
}

// Mode selects the synthesis variant
type Mode string

const (
	ModeBasic  Mode = "basic"
	ModeCloned Mode = "cloned"
)

// ParseMode accepts the canonical names plus the labels used by the recording UI
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic", "tts", "default":
		return ModeBasic, true
	case "cloned", "clone", "pro":
		return ModeCloned, true
	default:
		return "", false
	}
}

// Credential is an opaque API key. It is never persisted or logged.
type Credential string

// String hides the key so it cannot leak through %v or structured logs
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// Request is a single synthesis request
type Request struct {
	Text       string      `json:"text"`
	Mode       Mode        `json:"mode"`
	VoiceRef   string      `json:"voice_ref,omitempty"` // sample ID, required for ModeCloned
	Voice      string      `json:"voice,omitempty"`     // provider stock voice, ModeBasic only
	Provider   string      `json:"provider,omitempty"`
	Format     AudioFormat `json:"format,omitempty"` // empty means the provider's configured format
	Credential Credential  `json:"-"`
}

// AudioFormat is the output format of synthesized speech
type AudioFormat string

const (
	AudioFormatMP3 AudioFormat = "mp3"
	AudioFormatWAV AudioFormat = "wav"
	AudioFormatOGG AudioFormat = "ogg"
	AudioFormatPCM AudioFormat = "pcm"
)

// MimeType returns the content type served for this format
func (f AudioFormat) MimeType() string {
	switch f {
	case AudioFormatWAV:
		return "audio/wav"
	case AudioFormatOGG:
		return "audio/ogg"
	case AudioFormatPCM:
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// Extension returns the file extension for this format, without the dot
func (f AudioFormat) Extension() string {
	switch f {
	case AudioFormatWAV, AudioFormatOGG, AudioFormatPCM:
		return string(f)
	default:
		return "mp3"
	}
}

// DefaultOutputFile names the file speech is written to when no path is given
func DefaultOutputFile(f AudioFormat) string {
	return DefaultOutputName + "." + f.Extension()
}

// ParseAudioFormat resolves a requested output format, accepting common aliases.
// An empty string selects MP3.
func ParseAudioFormat(s string) (AudioFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mp3", "mpeg":
		return AudioFormatMP3, true
	case "wav", "wave":
		return AudioFormatWAV, true
	case "ogg", "opus", "ogg_opus":
		return AudioFormatOGG, true
	case "pcm", "raw", "linear16":
		return AudioFormatPCM, true
	default:
		return "", false
	}
}

// Result is the audio returned for a completed request
type Result struct {
	Audio    []byte      `json:"-"`
	Format   AudioFormat `json:"format"`
	Mode     Mode        `json:"mode"`
	Provider string      `json:"provider"`
	VoiceRef string      `json:"voice_ref,omitempty"`
}
