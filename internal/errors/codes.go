// Package errors defines the coded errors rolodex returns across package
// boundaries. A code has the form ERR_NXX_NAME; its leading digit N picks
// the category.
package errors

import "strings"

// Category groups codes by the subsystem that produced them.
type Category string

const (
	CategoryConfig   Category = "CONFIG"
	CategoryIndex    Category = "INDEX"
	CategoryProvider Category = "PROVIDER"
	CategoryInput    Category = "INPUT"
	CategoryInternal Category = "INTERNAL"
)

// Severity tells callers whether to abort, fail the operation, or degrade.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeIndexBuild       = "ERR_202_INDEX_BUILD"
	ErrCodeStorage          = "ERR_203_STORAGE"
	ErrCodeLocked           = "ERR_204_LOCKED"

	// Provider codes never reach search callers; they select a fallback tier.
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeProviderMalformed   = "ERR_303_PROVIDER_MALFORMED"

	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryTooLong      = "ERR_403_QUERY_TOO_LONG"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"

	ErrCodeEngineUnavailable = "ERR_501_ENGINE_UNAVAILABLE"
	ErrCodeInternal          = "ERR_502_INTERNAL"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIndex,
	'3': CategoryProvider,
	'4': CategoryInput,
}

// Codes whose severity differs from their category's default.
var severityOverrides = map[string]Severity{
	ErrCodeEngineUnavailable: SeverityFatal,
	ErrCodeQueryEmpty:        SeverityInfo,
	ErrCodeIndexUnavailable:  SeverityWarning,
}

var retryableCodes = map[string]bool{
	ErrCodeProviderTimeout:     true,
	ErrCodeProviderUnavailable: true,
	ErrCodeIndexUnavailable:    true,
}

func categoryFromCode(code string) Category {
	if !strings.HasPrefix(code, "ERR_") || len(code) < 7 {
		return CategoryInternal
	}
	if c, ok := categoryByDigit[code[4]]; ok {
		return c
	}
	return CategoryInternal
}

func severityFromCode(code string) Severity {
	if s, ok := severityOverrides[code]; ok {
		return s
	}
	if categoryFromCode(code) == CategoryProvider {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool { return retryableCodes[code] }
