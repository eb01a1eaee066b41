package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// OpenAIProvider speaks with OpenAI's stock TTS voices. It cannot clone.
type OpenAIProvider struct {
	baseURL    string // empty means the library default
	httpClient *http.Client
	defaults   Options
}

// NewOpenAIProvider creates an OpenAI TTS provider. The API key is passed per call.
func NewOpenAIProvider(defaults Options) *OpenAIProvider {
	return &OpenAIProvider{
		defaults: defaults,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ListVoices returns available OpenAI voices
func (p *OpenAIProvider) ListVoices(ctx context.Context, _ voice.Credential) ([]Voice, error) {
	return []Voice{
		{ID: "alloy", Name: "Alloy", Language: "en", Gender: "neutral", Description: "Balanced, clear voice"},
		{ID: "echo", Name: "Echo", Language: "en", Gender: "male", Description: "Deep, resonant voice"},
		{ID: "fable", Name: "Fable", Language: "en", Gender: "neutral", Description: "Expressive storytelling voice"},
		{ID: "onyx", Name: "Onyx", Language: "en", Gender: "male", Description: "Strong, authoritative voice"},
		{ID: "nova", Name: "Nova", Language: "en", Gender: "female", Description: "Bright, energetic voice"},
		{ID: "shimmer", Name: "Shimmer", Language: "en", Gender: "female", Description: "Warm, friendly voice"},
	}, nil
}

// Synthesize generates audio from text using the OpenAI speech endpoint
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, cred voice.Credential, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", voice.ErrValidation)
	}
	if cred == "" {
		return nil, missingCredential(p.Name())
	}

	opts = opts.Merge(p.defaults)

	voiceName := opts.Voice
	if voiceName == "" {
		voiceName = string(openai.VoiceAlloy)
	}
	model := opts.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	format, err := outputFormat(p, opts)
	if err != nil {
		return nil, err
	}
	responseFormat := openAIResponseFormat(format)
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}
	speed = min(max(speed, 0.25), 4.0)

	log.Debug().
		Str("voice", voiceName).
		Str("model", model).
		Str("format", string(responseFormat)).
		Float64("speed", speed).
		Msg("Making OpenAI TTS request")

	resp, err := p.client(cred).CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voiceName),
		ResponseFormat: responseFormat,
		Speed:          speed,
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	log.Debug().Msg("OpenAI TTS request successful")
	return resp.ReadCloser, nil
}

// openAIResponseFormat maps an output format to the speech response_format.
// OpenAI's opus output is Ogg encapsulated; pcm is 24kHz 16-bit mono.
func openAIResponseFormat(format voice.AudioFormat) openai.SpeechResponseFormat {
	switch format {
	case voice.AudioFormatWAV:
		return openai.SpeechResponseFormatWav
	case voice.AudioFormatOGG:
		return openai.SpeechResponseFormatOpus
	case voice.AudioFormatPCM:
		return openai.SpeechResponseFormatPcm
	default:
		return openai.SpeechResponseFormatMp3
	}
}

func (p *OpenAIProvider) client(cred voice.Credential) *openai.Client {
	cfg := openai.DefaultConfig(string(cred))
	if p.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(p.baseURL, "/")
	}
	cfg.HTTPClient = p.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Type
		if c, ok := apiErr.Code.(string); ok && c != "" {
			code = c
		}
		return &APIError{
			Provider:   p.Name(),
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code,
			Message:    apiErr.Message,
			Kind:       classifyStatus(apiErr.HTTPStatusCode, code, false),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &APIError{
			Provider:   p.Name(),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Kind:       classifyStatus(reqErr.HTTPStatusCode, "", false),
		}
	}

	return unavailable(p.Name(), err)
}
