package provider

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

// APIError is a provider rejection. It unwraps to one of the voice.Err* kinds.
type APIError struct {
	Provider   string
	StatusCode int    // HTTP status, 0 if not HTTP
	Code       string // provider's own status or error code
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" API error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// missingCredential is returned before any network call when no key is available
func missingCredential(provider string) error {
	return &APIError{Provider: provider, Message: "no API key configured", Kind: voice.ErrAuth}
}

// unavailable wraps a transport failure (DNS, TLS, timeout, reset)
func unavailable(provider string, err error) error {
	return fmt.Errorf("%s request failed: %w: %w", provider, voice.ErrProviderUnavailable, err)
}

// classifyCode maps a provider error code to a kind, or nil if it says nothing useful
func classifyCode(code string) error {
	c := strings.ToLower(code)
	switch {
	case c == "":
		return nil
	case strings.Contains(c, "invalid_api_key"), strings.Contains(c, "unauthorized"),
		strings.Contains(c, "unrecognizedclient"), strings.Contains(c, "invalidsignature"),
		strings.Contains(c, "expiredtoken"):
		return voice.ErrAuth
	case strings.Contains(c, "instant_voice_cloning"), hasWord(c, "plan"), hasWord(c, "subscription"):
		return voice.ErrPlanRequired
	case strings.Contains(c, "quota"), strings.Contains(c, "too_many_concurrent"),
		strings.Contains(c, "rate_limit"), strings.Contains(c, "throttl"),
		strings.Contains(c, "resource_exhausted"):
		return voice.ErrQuotaExceeded
	default:
		return nil
	}
}

// classifyStatus maps an HTTP rejection to a kind. registering marks calls that
// create a cloned voice, where 403 means the account's plan lacks cloning.
func classifyStatus(status int, code string, registering bool) error {
	if kind := classifyCode(code); kind != nil {
		return kind
	}
	switch status {
	case http.StatusUnauthorized:
		return voice.ErrAuth
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return voice.ErrQuotaExceeded
	case http.StatusForbidden:
		if registering {
			return voice.ErrPlanRequired
		}
		return voice.ErrProviderUnavailable
	default:
		return voice.ErrProviderUnavailable
	}
}

// hasWord reports whether word appears in s as a whole _ - or space separated token
func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' }) {
		if f == word {
			return true
		}
	}
	return false
}
