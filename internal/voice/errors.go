package voice

import (
	"errors"
	"strings"
)

// Error kinds surfaced to callers. Wrap them with fmt.Errorf("...: %w", ErrX)
// and test with errors.Is.
var (
	ErrInvalidAudio        = errors.New("invalid audio")
	ErrNotFound            = errors.New("voice sample not found")
	ErrAuth                = errors.New("authentication failed")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrPlanRequired        = errors.New("plan does not include voice cloning")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrValidation          = errors.New("invalid request")
)

// Kind is a stable, machine-readable name for an error kind
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidAudio        Kind = "invalid_audio"
	KindNotFound            Kind = "not_found"
	KindAuth                Kind = "auth_error"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindPlanRequired        Kind = "plan_required"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindValidation          Kind = "validation_error"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	// ErrValidation first: a missing sample in a cloned request is a validation failure
	{ErrValidation, KindValidation},
	{ErrInvalidAudio, KindInvalidAudio},
	{ErrNotFound, KindNotFound},
	{ErrAuth, KindAuth},
	{ErrQuotaExceeded, KindQuotaExceeded},
	{ErrPlanRequired, KindPlanRequired},
	{ErrProviderUnavailable, KindProviderUnavailable},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Message returns an actionable, user-facing message for err
func Message(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindInvalidAudio:
		return "No usable audio recorded. Record your voice (10-15 seconds works best) and save it again."
	case KindNotFound:
		return "Voice sample not found. Record and save your voice first, or check the sample ID."
	case KindAuth:
		return "Invalid API key. Please check your provider API key."
	case KindQuotaExceeded:
		return "API quota exceeded. Check your provider account usage, or try again later."
	case KindPlanRequired:
		return "Voice cloning via API requires a paid plan (Starter or higher). Try Basic mode instead."
	case KindProviderUnavailable:
		return "The speech provider could not be reached or returned an unexpected error. Try again later."
	case KindValidation:
		return "Invalid request: " + detail(err)
	default:
		return "Unexpected error: " + err.Error()
	}
}

// ValidationError describes why a request was rejected before dispatch.
// It matches ErrValidation and, when set, the underlying cause.
type ValidationError struct {
	Reason string
	Err    error
}

// Invalid builds a ValidationError. cause may be nil.
func Invalid(reason string, cause error) error {
	return &ValidationError{Reason: reason, Err: cause}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func detail(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return strings.TrimSuffix(err.Error(), ": "+ErrValidation.Error())
}
