package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// PollyClient interface defines the methods we need from the Polly client
type PollyClient interface {
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider speaks with Amazon Polly voices. AWS credentials come from the
// default chain, so the per-request credential is not used.
type PollyProvider struct {
	client   PollyClient
	region   string
	defaults Options
}

// NewPollyProvider creates a new Amazon Polly TTS provider
func NewPollyProvider(ctx context.Context, region string, defaults Options) (*PollyProvider, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &PollyProvider{
		client:   polly.NewFromConfig(cfg),
		region:   region,
		defaults: defaults,
	}, nil
}

// Name returns the provider name
func (p *PollyProvider) Name() string {
	return "polly"
}

// ListVoices returns available Amazon Polly voices
func (p *PollyProvider) ListVoices(ctx context.Context, _ voice.Credential) ([]Voice, error) {
	input := &polly.DescribeVoicesInput{}
	if p.defaults.Language != "" {
		input.LanguageCode = types.LanguageCode(p.defaults.Language)
	}

	result, err := p.client.DescribeVoices(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list Polly voices: %w", p.mapError(err))
	}

	title := cases.Title(language.English)
	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		vo := Voice{
			ID:       string(v.Id),
			Name:     aws.ToString(v.Name),
			Language: string(v.LanguageCode),
			Description: fmt.Sprintf("%s voice, %s engine supported",
				title.String(string(v.Gender)),
				formatSupportedEngines(v.SupportedEngines)),
		}
		switch v.Gender {
		case types.GenderFemale:
			vo.Gender = "female"
		case types.GenderMale:
			vo.Gender = "male"
		}
		voices = append(voices, vo)
	}

	return voices, nil
}

// pollyOutputFormats lists what Polly can return. Polly has no WAV output.
var pollyOutputFormats = map[voice.AudioFormat]types.OutputFormat{
	voice.AudioFormatMP3: types.OutputFormatMp3,
	voice.AudioFormatOGG: types.OutputFormatOggVorbis,
	voice.AudioFormatPCM: types.OutputFormatPcm,
}

// SupportsFormat reports whether Polly can produce format f
func (p *PollyProvider) SupportsFormat(f voice.AudioFormat) bool {
	_, ok := pollyOutputFormats[f]
	return ok
}

// Synthesize generates audio from text using Amazon Polly
func (p *PollyProvider) Synthesize(ctx context.Context, text string, _ voice.Credential, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", voice.ErrValidation)
	}

	opts = opts.Merge(p.defaults)

	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = "Joanna"
	}

	format, err := outputFormat(p, opts)
	if err != nil {
		return nil, err
	}
	pollyFormat := pollyOutputFormats[format]

	engine := types.EngineNeural
	switch strings.ToLower(opts.Engine) {
	case "", "neural":
	case "standard":
		engine = types.EngineStandard
	case "long-form":
		engine = types.EngineLongForm
	case "generative":
		engine = types.EngineGenerative
	default:
		log.Warn().Str("engine", opts.Engine).Msg("Unknown engine, using neural")
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: pollyFormat,
		Engine:       engine,
		TextType:     types.TextTypeText,
	}

	switch opts.SampleRate {
	case "":
	case "8000", "16000", "22050", "24000":
		input.SampleRate = aws.String(opts.SampleRate)
	default:
		log.Warn().Str("sample_rate", opts.SampleRate).Msg("Invalid sample rate, using default")
	}

	if isSSML(text) {
		input.TextType = types.TextTypeSsml
	}

	log.Debug().
		Str("voice_id", voiceID).
		Str("output_format", string(pollyFormat)).
		Str("engine", string(engine)).
		Str("text_type", string(input.TextType)).
		Msg("Making Polly synthesis request")

	result, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", p.mapError(err))
	}

	log.Debug().
		Str("content_type", aws.ToString(result.ContentType)).
		Msg("Polly synthesis request successful")

	return result.AudioStream, nil
}

func (p *PollyProvider) mapError(err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return unavailable(p.Name(), err)
	}

	code := ae.ErrorCode()
	kind := classifyCode(code)
	switch {
	case kind != nil:
	case code == "AccessDeniedException", code == "MissingAuthenticationToken":
		kind = voice.ErrAuth
	default:
		kind = voice.ErrProviderUnavailable
	}

	return &APIError{
		Provider: p.Name(),
		Code:     code,
		Message:  ae.ErrorMessage(),
		Kind:     kind,
	}
}

// formatSupportedEngines formats the list of supported engines for display
func formatSupportedEngines(engines []types.Engine) string {
	if len(engines) == 0 {
		return "unknown"
	}

	engineNames := make([]string, len(engines))
	for i, engine := range engines {
		engineNames[i] = string(engine)
	}
	return strings.Join(engineNames, ", ")
}
