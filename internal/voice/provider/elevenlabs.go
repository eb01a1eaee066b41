package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

const (
	ElevenLabsBaseURL        = "https://api.elevenlabs.io/v1"
	ElevenLabsTTSEndpoint    = "/text-to-speech"
	ElevenLabsVoicesEndpoint = "/voices"
	ElevenLabsAddEndpoint    = "/voices/add"

	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	ElevenLabsDefaultModel = "eleven_multilingual_v2"

	tempVoicePrefix = "TempClonedVoice"
	cleanupTimeout  = 15 * time.Second
	maxErrorBody    = 64 << 10
	elevenPCMRate   = 44100
)

// ElevenLabsProvider speaks with stock voices and with instant voice clones
// created from a stored sample
type ElevenLabsProvider struct {
	baseURL    string
	httpClient *http.Client
	defaults   Options
}

// NewElevenLabsProvider creates an ElevenLabs provider. The API key is passed per call.
func NewElevenLabsProvider(defaults Options) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		baseURL:  ElevenLabsBaseURL,
		defaults: defaults,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // cloning uploads plus synthesis can be slow
		},
	}
}

// Name returns the provider name
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// ElevenLabsVoice represents a voice from ElevenLabs API
type ElevenLabsVoice struct {
	VoiceID         string            `json:"voice_id"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	Labels          map[string]string `json:"labels"`
	Description     string            `json:"description"`
	AvailableForTTS *bool             `json:"available_for_tts,omitempty"`
	FineTuning      struct {
		Language string `json:"language"`
	} `json:"fine_tuning"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// ElevenLabsTTSRequest represents the request body for TTS synthesis
type ElevenLabsTTSRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// ListVoices returns the account's voices, or the pre-built set when no key is given
func (p *ElevenLabsProvider) ListVoices(ctx context.Context, cred voice.Credential) ([]Voice, error) {
	if cred == "" {
		return GetPrebuiltVoices(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+ElevenLabsVoicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("xi-api-key", string(cred))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.parseError(resp, false)
	}

	var voicesResp struct {
		Voices []ElevenLabsVoice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResp); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]Voice, 0, len(voicesResp.Voices))
	for _, v := range voicesResp.Voices {
		if v.AvailableForTTS != nil && !*v.AvailableForTTS {
			continue
		}
		// leftovers from interrupted clone requests
		if strings.HasPrefix(v.Name, tempVoicePrefix) {
			continue
		}

		language := "multilingual"
		if v.FineTuning.Language != "" {
			language = v.FineTuning.Language
		}
		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Language:    language,
			Gender:      v.Labels["gender"],
			Description: v.Description,
		})
	}

	log.Debug().Int("voice_count", len(voices)).Msg("ElevenLabs voices retrieved successfully")
	return voices, nil
}

// Synthesize generates audio with a stock voice
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, cred voice.Credential, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", voice.ErrValidation)
	}
	if cred == "" {
		return nil, missingCredential(p.Name())
	}

	opts = opts.Merge(p.defaults)
	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = ElevenLabsDefaultVoice
	}
	return p.textToSpeech(ctx, text, voiceID, cred, opts)
}

// SynthesizeCloned registers the sample as a temporary voice, speaks text with
// it, and deletes the voice when the returned stream is closed
func (p *ElevenLabsProvider) SynthesizeCloned(ctx context.Context, text string, sample *voice.Sample, cred voice.Credential, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", voice.ErrValidation)
	}
	if sample == nil || len(sample.Audio) == 0 {
		return nil, fmt.Errorf("cloned synthesis needs sample audio: %w", voice.ErrInvalidAudio)
	}
	if cred == "" {
		return nil, missingCredential(p.Name())
	}

	opts = opts.Merge(p.defaults)
	if _, err := outputFormat(p, opts); err != nil {
		return nil, err
	}

	voiceID, err := p.addVoice(ctx, sample, cred)
	if err != nil {
		return nil, err
	}

	body, err := p.textToSpeech(ctx, text, voiceID, cred, opts)
	if err != nil {
		p.deleteVoice(ctx, voiceID, cred)
		return nil, err
	}

	return &cleanupReadCloser{
		ReadCloser: body,
		cleanup:    func() { p.deleteVoice(ctx, voiceID, cred) },
	}, nil
}

func (p *ElevenLabsProvider) textToSpeech(ctx context.Context, text, voiceID string, cred voice.Credential, opts Options) (io.ReadCloser, error) {
	model := opts.Model
	if model == "" {
		model = ElevenLabsDefaultModel
	}
	format, err := outputFormat(p, opts)
	if err != nil {
		return nil, err
	}
	elevenFormat := convertToElevenLabsFormat(format)

	settings := VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           opts.Style,
		UseSpeakerBoost: true,
	}
	if opts.Stability > 0 {
		settings.Stability = opts.Stability
	}
	if opts.SimilarityBoost > 0 {
		settings.SimilarityBoost = opts.SimilarityBoost
	}
	if opts.UseSpeakerBoost != nil {
		settings.UseSpeakerBoost = *opts.UseSpeakerBoost
	}

	jsonData, err := json.Marshal(ElevenLabsTTSRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s/%s?output_format=%s",
		p.baseURL, ElevenLabsTTSEndpoint, url.PathEscape(voiceID), url.QueryEscape(elevenFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", string(cred))

	log.Debug().
		Str("voice", voiceID).
		Str("model", model).
		Str("format", elevenFormat).
		Msg("Making ElevenLabs TTS request")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.parseError(resp, false)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("ElevenLabs TTS request successful")

	if format != voice.AudioFormatWAV {
		return resp.Body, nil
	}

	// pcm_44100 is headerless 16-bit mono
	defer resp.Body.Close()
	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), fmt.Errorf("failed to read audio: %w", err))
	}
	return io.NopCloser(bytes.NewReader(voice.EncodeWAV(pcm, elevenPCMRate, 1, 16))), nil
}

// addVoice uploads the sample as an instant voice clone and returns its voice ID
func (p *ElevenLabsProvider) addVoice(ctx context.Context, sample *voice.Sample, cred voice.Credential) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := tempVoicePrefix + "-" + sample.ID
	if err := mw.WriteField("name", name); err != nil {
		return "", fmt.Errorf("failed to build voice upload: %w", err)
	}
	if err := mw.WriteField("remove_background_noise", "false"); err != nil {
		return "", fmt.Errorf("failed to build voice upload: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="files"; filename="%s.%s"`, sample.ID, sample.Format.Encoding.Extension()))
	header.Set("Content-Type", sample.Format.Encoding.MimeType())
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build voice upload: %w", err)
	}
	if _, err := part.Write(sample.Audio); err != nil {
		return "", fmt.Errorf("failed to build voice upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build voice upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ElevenLabsAddEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create voice upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", string(cred))

	log.Debug().
		Str("sample", sample.ID).
		Int64("size", sample.Size).
		Msg("Registering temporary ElevenLabs voice")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", unavailable(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.parseError(resp, true)
	}

	var added struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil || added.VoiceID == "" {
		return "", &APIError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    "voice registration returned no voice_id",
			Kind:       voice.ErrProviderUnavailable,
		}
	}
	return added.VoiceID, nil
}

// deleteVoice removes a temporary voice. Failures are logged, never returned.
func (p *ElevenLabsProvider) deleteVoice(ctx context.Context, voiceID string, cred voice.Credential) {
	// runs after the request context may already be done
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		p.baseURL+ElevenLabsVoicesEndpoint+"/"+url.PathEscape(voiceID), nil)
	if err != nil {
		log.Warn().Err(err).Str("voice_id", voiceID).Msg("Failed to delete temporary voice")
		return
	}
	req.Header.Set("xi-api-key", string(cred))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("voice_id", voiceID).Msg("Failed to delete temporary voice")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Warn().Int("status", resp.StatusCode).Str("voice_id", voiceID).Msg("Failed to delete temporary voice")
		return
	}
	log.Debug().Str("voice_id", voiceID).Msg("Deleted temporary voice")
}

// cleanupReadCloser runs cleanup once, after the wrapped stream is closed
type cleanupReadCloser struct {
	io.ReadCloser
	cleanup func()
	once    sync.Once
}

func (c *cleanupReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cleanup)
	return err
}

func (p *ElevenLabsProvider) parseError(resp *http.Response, registering bool) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{Provider: p.Name(), StatusCode: resp.StatusCode}

	var errorResp ElevenLabsError
	if json.Unmarshal(body, &errorResp) == nil && errorResp.Detail != nil {
		apiErr.Code = errorResp.Status()
		apiErr.Message = errorResp.String()
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Kind = classifyStatus(resp.StatusCode, apiErr.Code, registering)

	log.Debug().
		Int("status", resp.StatusCode).
		Str("code", apiErr.Code).
		Bool("registering", registering).
		Msg("ElevenLabs request rejected")

	return apiErr
}

// convertToElevenLabsFormat converts an output format to the ElevenLabs output_format name
func convertToElevenLabsFormat(format voice.AudioFormat) string {
	switch format {
	case voice.AudioFormatWAV, voice.AudioFormatPCM:
		return fmt.Sprintf("pcm_%d", elevenPCMRate)
	case voice.AudioFormatOGG:
		return "opus_48000_128"
	default:
		return "mp3_44100_128"
	}
}

// ElevenLabsError represents an error from ElevenLabs API
type ElevenLabsError struct {
	Detail interface{} `json:"detail"`
}

// Status returns the machine-readable status from the detail object, if any
func (e ElevenLabsError) Status() string {
	if detail, ok := e.Detail.(map[string]interface{}); ok {
		if status, ok := detail["status"].(string); ok {
			return status
		}
	}
	return ""
}

func (e ElevenLabsError) String() string {
	switch detail := e.Detail.(type) {
	case string:
		return detail
	case map[string]interface{}:
		if msg, ok := detail["message"].(string); ok {
			return msg
		}
		return fmt.Sprintf("%v", detail)
	case []interface{}:
		if len(detail) > 0 {
			if firstError, ok := detail[0].(map[string]interface{}); ok {
				if msg, ok := firstError["msg"].(string); ok {
					return msg
				}
			}
		}
		return fmt.Sprintf("%v", detail)
	default:
		return fmt.Sprintf("%v", detail)
	}
}

// GetPrebuiltVoices returns the well-known pre-built ElevenLabs voices
func GetPrebuiltVoices() []Voice {
	return []Voice{
		{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Language: "en", Gender: "female", Description: "Calm American female voice"},
		{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Language: "en", Gender: "female", Description: "Strong American female voice"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Language: "en", Gender: "female", Description: "Soft American female voice"},
		{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Language: "en", Gender: "male", Description: "Well-rounded American male voice"},
		{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Language: "en", Gender: "male", Description: "Deep American male voice"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Language: "en", Gender: "male", Description: "Deep American male voice"},
	}
}
