package errors

import (
	"errors"
	"fmt"
)

// RolodexError is a coded error. Category, Severity and Retryable are
// derived from Code by New.
type RolodexError struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Retryable  bool
	Details    map[string]string
	Suggestion string // shown to users next to Message
	Cause      error
}

func (e *RolodexError) Error() string {
	return "[" + e.Code + "] " + e.Message
}

func (e *RolodexError) Unwrap() error { return e.Cause }

// Is matches any RolodexError with the same code, so the sentinels below
// work with errors.Is.
func (e *RolodexError) Is(target error) bool {
	t, ok := target.(*RolodexError)
	return ok && t.Code == e.Code
}

// WithDetail attaches a key/value pair and returns e.
func (e *RolodexError) WithDetail(key, value string) *RolodexError {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user-facing remedy and returns e.
func (e *RolodexError) WithSuggestion(s string) *RolodexError {
	e.Suggestion = s
	return e
}

// New builds a RolodexError for code.
func New(code, message string, cause error) *RolodexError {
	return &RolodexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
		Cause:     cause,
	}
}

// Wrap uses err's text as the message. A nil err gives nil.
func Wrap(code string, err error) *RolodexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

var (
	ErrInput               = &RolodexError{Code: ErrCodeInvalidInput}
	ErrIndexUnavailable    = &RolodexError{Code: ErrCodeIndexUnavailable}
	ErrProviderTimeout     = &RolodexError{Code: ErrCodeProviderTimeout}
	ErrProviderUnavailable = &RolodexError{Code: ErrCodeProviderUnavailable}
	ErrProviderMalformed   = &RolodexError{Code: ErrCodeProviderMalformed}
	ErrEngineUnavailable   = &RolodexError{Code: ErrCodeEngineUnavailable}
)

func ConfigError(message string, cause error) *RolodexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

func InputError(message string, cause error) *RolodexError {
	return New(ErrCodeInvalidInput, message, cause)
}

func InternalError(message string, cause error) *RolodexError {
	return New(ErrCodeInternal, message, cause)
}

func providerError(code, provider, what string, cause error) *RolodexError {
	return New(code, provider+" "+what, cause).WithDetail("provider", provider)
}

// ProviderTimeout reports a provider call that ran past its deadline.
func ProviderTimeout(provider string, cause error) *RolodexError {
	return providerError(ErrCodeProviderTimeout, provider, "timed out", cause)
}

// ProviderUnavailable reports a provider that refused or failed a call.
func ProviderUnavailable(provider string, cause error) *RolodexError {
	return providerError(ErrCodeProviderUnavailable, provider, "unavailable", cause)
}

// ProviderMalformed reports a response that could not be parsed.
func ProviderMalformed(provider string, cause error) *RolodexError {
	return providerError(ErrCodeProviderMalformed, provider, "returned a malformed response", cause)
}

// EngineUnavailable is returned when userID has no index.
func EngineUnavailable(userID string) *RolodexError {
	return New(ErrCodeEngineUnavailable, fmt.Sprintf("no index for user %q", userID), nil).
		WithDetail("user_id", userID).
		WithSuggestion("upsert contacts for this user before searching")
}

func find(err error) *RolodexError {
	var re *RolodexError
	if errors.As(err, &re) {
		return re
	}
	return nil
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	re := find(err)
	return re != nil && re.Retryable
}

func IsFatal(err error) bool {
	re := find(err)
	return re != nil && re.Severity == SeverityFatal
}

// IsProviderError reports whether err came from an embedding or reasoning
// provider.
func IsProviderError(err error) bool {
	return GetCategory(err) == CategoryProvider
}

// GetCode returns the code of the first RolodexError in err's chain, or "".
func GetCode(err error) string {
	if re := find(err); re != nil {
		return re.Code
	}
	return ""
}

func GetCategory(err error) Category {
	if re := find(err); re != nil {
		return re.Category
	}
	return ""
}
