package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// GCPClient is the subset of the Cloud Text-to-Speech client used here
type GCPClient interface {
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GCPProvider speaks with Google Cloud Text-to-Speech voices. Authentication
// uses Application Default Credentials, so the per-request credential is not used.
type GCPProvider struct {
	client   GCPClient
	voice    string
	language string
}

// GCPProviderOption is a functional option for configuring GCPProvider
type GCPProviderOption func(*GCPProvider)

// WithGCPVoice sets the default voice
func WithGCPVoice(voice string) GCPProviderOption {
	return func(p *GCPProvider) {
		p.voice = voice
	}
}

// WithGCPLanguage sets the default language code
func WithGCPLanguage(language string) GCPProviderOption {
	return func(p *GCPProvider) {
		p.language = language
	}
}

// withGCPClient replaces the gRPC client
func withGCPClient(client GCPClient) GCPProviderOption {
	return func(p *GCPProvider) {
		p.client = client
	}
}

// NewGCPProvider creates a new Google Cloud TTS provider
func NewGCPProvider(ctx context.Context, opts ...GCPProviderOption) (*GCPProvider, error) {
	p := &GCPProvider{
		voice:    "en-US-Neural2-F",
		language: "en-US",
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		client, err := texttospeech.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP TTS client: %w", err)
		}
		p.client = client
	}

	return p, nil
}

// Name returns the provider name
func (p *GCPProvider) Name() string {
	return "gcp"
}

// ListVoices returns available voices for the configured language
func (p *GCPProvider) ListVoices(ctx context.Context, _ voice.Credential) ([]Voice, error) {
	resp, err := p.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: p.language})
	if err != nil {
		return nil, fmt.Errorf("failed to list GCP voices: %w", p.mapError(err))
	}

	var voices []Voice
	for _, v := range resp.Voices {
		gender := "unknown"
		switch v.SsmlGender {
		case texttospeechpb.SsmlVoiceGender_MALE:
			gender = "male"
		case texttospeechpb.SsmlVoiceGender_FEMALE:
			gender = "female"
		case texttospeechpb.SsmlVoiceGender_NEUTRAL:
			gender = "neutral"
		}

		language := p.language
		if len(v.LanguageCodes) > 0 {
			language = v.LanguageCodes[0]
		}

		voices = append(voices, Voice{
			ID:          v.Name,
			Name:        v.Name,
			Language:    language,
			Gender:      gender,
			Description: fmt.Sprintf("%s voice", detectEngineType(v.Name)),
		})
	}

	log.Debug().Int("count", len(voices)).Msg("Listed GCP TTS voices")
	return voices, nil
}

// Synthesize generates audio from text using Google Cloud TTS
func (p *GCPProvider) Synthesize(ctx context.Context, text string, _ voice.Credential, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", voice.ErrValidation)
	}
	format, err := outputFormat(p, opts)
	if err != nil {
		return nil, err
	}

	voiceName := p.voice
	if opts.Voice != "" {
		voiceName = opts.Voice
	}

	// ja-JP-Neural2-B -> ja-JP
	lang := p.language
	if opts.Language != "" {
		lang = opts.Language
	} else if parts := strings.Split(voiceName, "-"); len(parts) >= 2 {
		lang = parts[0] + "-" + parts[1]
	}

	input := &texttospeechpb.SynthesisInput{
		InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
	}
	if isSSML(text) {
		input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: text}
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: input,
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: getAudioEncoding(format),
			SpeakingRate:  getSpeakingRate(opts.Speed),
		},
	}

	log.Debug().
		Str("voice", voiceName).
		Str("language", lang).
		Str("format", string(format)).
		Msg("Making GCP TTS synthesis request")

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", p.mapError(err))
	}

	log.Debug().Int("audio_bytes", len(resp.AudioContent)).Msg("GCP TTS synthesis successful")

	audio := resp.AudioContent
	if format == voice.AudioFormatPCM {
		// LINEAR16 responses carry a WAV header
		if audio, err = voice.PCMFromWAV(audio); err != nil {
			return nil, unavailable(p.Name(), fmt.Errorf("unexpected LINEAR16 response: %w", err))
		}
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

// Close closes the GCP client
func (p *GCPProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GCPProvider) mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return unavailable(p.Name(), err)
	}

	var kind error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = voice.ErrAuth
	case codes.ResourceExhausted:
		kind = voice.ErrQuotaExceeded
	default:
		kind = voice.ErrProviderUnavailable
	}

	return &APIError{
		Provider: p.Name(),
		Code:     st.Code().String(),
		Message:  st.Message(),
		Kind:     kind,
	}
}

// detectEngineType determines the engine type from voice name
func detectEngineType(voiceName string) string {
	name := strings.ToLower(voiceName)
	switch {
	case strings.Contains(name, "wavenet"):
		return "WaveNet"
	case strings.Contains(name, "neural2"):
		return "Neural2"
	case strings.Contains(name, "studio"):
		return "Studio"
	case strings.Contains(name, "chirp"):
		return "Chirp"
	default:
		return "Standard"
	}
}

// isSSML checks if the text contains SSML tags
func isSSML(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<speak") ||
		strings.Contains(trimmed, "<prosody") ||
		strings.Contains(trimmed, "<break") ||
		strings.Contains(trimmed, "<emphasis")
}

// getAudioEncoding converts an output format to a GCP audio encoding
func getAudioEncoding(format voice.AudioFormat) texttospeechpb.AudioEncoding {
	switch format {
	case voice.AudioFormatWAV, voice.AudioFormatPCM:
		return texttospeechpb.AudioEncoding_LINEAR16
	case voice.AudioFormatOGG:
		return texttospeechpb.AudioEncoding_OGG_OPUS
	default:
		return texttospeechpb.AudioEncoding_MP3
	}
}

// getSpeakingRate converts speed to GCP speaking rate (0.25 to 4.0)
func getSpeakingRate(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return min(max(speed, 0.25), 4.0)
}
