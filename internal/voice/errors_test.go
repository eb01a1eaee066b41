package voice

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"wrapped auth", fmt.Errorf("elevenlabs: %w", ErrAuth), KindAuth},
		{"quota", ErrQuotaExceeded, KindQuotaExceeded},
		{"plan", fmt.Errorf("register voice: %w", ErrPlanRequired), KindPlanRequired},
		{"unavailable", ErrProviderUnavailable, KindProviderUnavailable},
		{"invalid audio", fmt.Errorf("sample too short: %w", ErrInvalidAudio), KindInvalidAudio},
		{"not found", ErrNotFound, KindNotFound},
		{"validation wins over not found", Invalid("voice reference v9 does not resolve", ErrNotFound), KindValidation},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := Invalid("voice reference v9 does not resolve", ErrNotFound)

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "voice reference v9 does not resolve: voice sample not found", err.Error())
	assert.Equal(t, "Invalid request: voice reference v9 does not resolve", Message(err))

	bare := Invalid("text is empty", nil)
	assert.ErrorIs(t, bare, ErrValidation)
	assert.NotErrorIs(t, bare, ErrNotFound)
	assert.Equal(t, "text is empty", bare.Error())
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(ErrAuth), "Invalid API key")
	assert.Contains(t, Message(ErrQuotaExceeded), "quota exceeded")
	assert.Contains(t, Message(ErrPlanRequired), "Starter")
	assert.Contains(t, Message(ErrPlanRequired), "Basic mode")
	assert.Contains(t, Message(ErrInvalidAudio), "10-15 seconds")
	assert.Contains(t, Message(errors.New("disk on fire")), "disk on fire")
}
