package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewElevenLabsProvider(Options{}))
	r.Register(NewOpenAIProvider(Options{}))

	assert.Equal(t, []string{"elevenlabs", "openai"}, r.Names())

	b, err := r.Basic("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	c, err := r.Clone("elevenlabs")
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", c.Name())

	_, err = r.Clone("openai")
	assert.ErrorContains(t, err, "does not support voice cloning")

	_, err = r.Basic("voicevox")
	assert.ErrorContains(t, err, "unknown provider")

	_, ok := r.Lister("openai")
	assert.True(t, ok)
}

func TestFromConfig(t *testing.T) {
	cfg := &voice.ConfigFile{
		Providers: map[string]voice.ProviderConfig{
			"elevenlabs": {BaseURL: "http://localhost:9999/v1/", Voice: "custom", Stability: 0.4},
		},
	}

	r := FromConfig(context.Background(), cfg)
	assert.Equal(t, []string{"elevenlabs", "openai"}, r.Names())

	b, err := r.Basic("elevenlabs")
	require.NoError(t, err)
	el := b.(*ElevenLabsProvider)
	assert.Equal(t, "http://localhost:9999/v1", el.baseURL)
	assert.Equal(t, "custom", el.defaults.Voice)
	assert.Equal(t, 0.4, el.defaults.Stability)

	// nil config still yields the credential-per-call providers
	assert.Equal(t, []string{"elevenlabs", "openai"}, FromConfig(context.Background(), nil).Names())
}

func TestSessionCredentials(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "from-env")
	t.Setenv("OPENAI_API_KEY", "")

	creds := SessionCredentials(&voice.ConfigFile{
		Providers: map[string]voice.ProviderConfig{
			"openai": {APIKey: "from-config"},
		},
	})

	assert.Equal(t, voice.Credential("from-env"), creds["elevenlabs"])
	assert.Equal(t, voice.Credential("from-config"), creds["openai"])
	assert.NotContains(t, creds, "polly")
}

func TestOptionsMerge(t *testing.T) {
	on := true
	got := Options{Voice: "req"}.Merge(Options{Voice: "cfg", Model: "m", UseSpeakerBoost: &on})
	assert.Equal(t, "req", got.Voice)
	assert.Equal(t, "m", got.Model)
	require.NotNil(t, got.UseSpeakerBoost)
	assert.True(t, *got.UseSpeakerBoost)
}

func TestRegistry_Close(t *testing.T) {
	gcpClient := &MockGCPClient{}
	r := NewRegistry()
	r.Register(NewElevenLabsProvider(Options{}))
	r.Register(newTestGCP(t, gcpClient))

	require.NoError(t, r.Close())
	assert.True(t, gcpClient.closed)

	r.Register(failingCloser{newTestGCP(t, &MockGCPClient{})})
	err := r.Close()
	assert.ErrorContains(t, err, "failed to close gcp")
	assert.ErrorIs(t, err, errCloseFailed)

	assert.NoError(t, NewRegistry().Close())
}

var errCloseFailed = errors.New("connection already closed")

type failingCloser struct {
	*GCPProvider
}

func (failingCloser) Close() error { return errCloseFailed }
