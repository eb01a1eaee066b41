package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// Registry holds the configured providers by name
type Registry struct {
	basic map[string]BasicSynthesizer
	clone map[string]CloneSynthesizer
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		basic: make(map[string]BasicSynthesizer),
		clone: make(map[string]CloneSynthesizer),
	}
}

// Register adds p. Providers that can also clone are registered for both modes.
func (r *Registry) Register(p BasicSynthesizer) {
	r.basic[p.Name()] = p
	if c, ok := p.(CloneSynthesizer); ok {
		r.clone[p.Name()] = c
	}
}

// Basic returns the named stock-voice provider
func (r *Registry) Basic(name string) (BasicSynthesizer, error) {
	p, ok := r.basic[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Clone returns the named cloning provider
func (r *Registry) Clone(name string) (CloneSynthesizer, error) {
	p, ok := r.clone[name]
	if !ok {
		if _, exists := r.basic[name]; exists {
			return nil, fmt.Errorf("provider %s does not support voice cloning", name)
		}
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Lister returns the named provider's voice listing, if it has one
func (r *Registry) Lister(name string) (VoiceLister, bool) {
	l, ok := r.basic[name].(VoiceLister)
	return l, ok
}

// Names returns registered provider names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.basic))
	for name := range r.basic {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases providers that hold connections, such as the GCP gRPC client
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.Names() {
		if c, ok := r.basic[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a registry from configuration. ElevenLabs and OpenAI are
// always available since they need no setup until a call is made. Polly and
// GCP are built only when configured, because they resolve cloud credentials
// up front.
func FromConfig(ctx context.Context, cfg *voice.ConfigFile) *Registry {
	r := NewRegistry()

	eleven := NewElevenLabsProvider(OptionsFromConfig(cfg.GetProviderConfig("elevenlabs")))
	if pc := cfg.GetProviderConfig("elevenlabs"); pc != nil && pc.BaseURL != "" {
		eleven.baseURL = strings.TrimSuffix(pc.BaseURL, "/")
	}
	r.Register(eleven)

	oa := NewOpenAIProvider(OptionsFromConfig(cfg.GetProviderConfig("openai")))
	if pc := cfg.GetProviderConfig("openai"); pc != nil && pc.BaseURL != "" {
		oa.baseURL = pc.BaseURL
	}
	r.Register(oa)

	if pc := cfg.GetProviderConfig("polly"); pc != nil {
		p, err := NewPollyProvider(ctx, pc.Region, OptionsFromConfig(pc))
		if err != nil {
			log.Warn().Err(err).Msg("Polly provider disabled")
		} else {
			r.Register(p)
		}
	}

	if pc := cfg.GetProviderConfig("gcp"); pc != nil {
		var opts []GCPProviderOption
		if pc.Voice != "" {
			opts = append(opts, WithGCPVoice(pc.Voice))
		}
		if pc.Language != "" {
			opts = append(opts, WithGCPLanguage(pc.Language))
		}
		p, err := NewGCPProvider(ctx, opts...)
		if err != nil {
			log.Warn().Err(err).Msg("GCP provider disabled")
		} else {
			r.Register(p)
		}
	}

	log.Debug().Strs("providers", r.Names()).Msg("Providers registered")
	return r
}

// SessionCredentials collects per-provider API keys from configuration, falling
// back to <PROVIDER>_API_KEY environment variables
func SessionCredentials(cfg *voice.ConfigFile) map[string]voice.Credential {
	creds := make(map[string]voice.Credential)
	for _, name := range voice.KnownProviders {
		key := ""
		if pc := cfg.GetProviderConfig(name); pc != nil {
			key = pc.APIKey
		}
		if key == "" {
			key = os.Getenv(strings.ToUpper(name) + "_API_KEY")
		}
		if key != "" {
			creds[name] = voice.Credential(key)
		}
	}
	return creds
}
