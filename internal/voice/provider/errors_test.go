package provider

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		code        string
		registering bool
		want        error
	}{
		{"401", http.StatusUnauthorized, "", false, voice.ErrAuth},
		{"invalid key code wins", http.StatusBadRequest, "invalid_api_key", false, voice.ErrAuth},
		{"402", http.StatusPaymentRequired, "", false, voice.ErrQuotaExceeded},
		{"429", http.StatusTooManyRequests, "", false, voice.ErrQuotaExceeded},
		{"quota code", http.StatusBadRequest, "quota_exceeded", false, voice.ErrQuotaExceeded},
		{"403 registering", http.StatusForbidden, "", true, voice.ErrPlanRequired},
		{"403 speaking", http.StatusForbidden, "", false, voice.ErrProviderUnavailable},
		{"cloning code", http.StatusBadRequest, "can_not_use_instant_voice_cloning", false, voice.ErrPlanRequired},
		{"plan word", http.StatusBadRequest, "paid_plan_required", false, voice.ErrPlanRequired},
		{"plan inside a word does not count", http.StatusInternalServerError, "no_explanation", false, voice.ErrProviderUnavailable},
		{"500", http.StatusInternalServerError, "", false, voice.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status, tt.code, tt.registering))
		})
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Provider: "elevenlabs", StatusCode: 401, Code: "invalid_api_key", Message: "Invalid API key", Kind: voice.ErrAuth}

	assert.Equal(t, "elevenlabs API error: status 401 (invalid_api_key): Invalid API key", err.Error())
	assert.ErrorIs(t, err, voice.ErrAuth)
	assert.Equal(t, voice.KindAuth, voice.KindOf(err))
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	err := unavailable("openai", cause)

	assert.ErrorIs(t, err, voice.ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, missingCredential("openai"), voice.ErrAuth)
}
