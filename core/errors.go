package core

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrStepLimitExceeded is returned when the round-trip bound is exhausted.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	// ErrEmptyResponse is returned by providers that produced no candidate message.
	ErrEmptyResponse = errors.New("empty model response")
)

// ConfigurationError reports an invalid or missing setting detected while
// constructing the service or a per-request graph. It is always fatal.
type ConfigurationError struct {
	Field   string // Setting name, e.g. MODEL_PROVIDER
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error [%s]: %s: %v", e.Field, e.Message, e.Err)
	}

	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, message string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message, Err: err}
}

// ProviderErrorKind classifies model backend failures so callers can decide
// whether a retry makes sense.
type ProviderErrorKind string

const (
	// ProviderUnavailable covers network failures and 5xx responses.
	ProviderUnavailable ProviderErrorKind = "unavailable"
	// ProviderUnauthorized covers 401/403 responses.
	ProviderUnauthorized ProviderErrorKind = "unauthorized"
	// ProviderRateLimited covers 429 responses.
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	// ProviderBadResponse covers malformed or empty responses and 4xx request errors.
	ProviderBadResponse ProviderErrorKind = "bad_response"
	// ProviderUnknown is used when no better classification is possible.
	ProviderUnknown ProviderErrorKind = "unknown"
)

// Retryable reports whether a retry can reasonably succeed.
func (k ProviderErrorKind) Retryable() bool {
	return k == ProviderUnavailable || k == ProviderRateLimited
}

// ProviderError wraps a model backend failure.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int // 0 when no HTTP status is available
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error [%s, status %d]: %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s provider error [%s]: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying SDK error.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError classifies err using an optional HTTP status code.
func NewProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindForStatus(status), StatusCode: status, Err: err}
}

// KindForStatus maps an HTTP status code to a ProviderErrorKind. A zero
// status (no response received) is treated as unavailable.
func KindForStatus(status int) ProviderErrorKind {
	switch {
	case status == 0:
		return ProviderUnavailable
	case status == 401 || status == 403:
		return ProviderUnauthorized
	case status == 429:
		return ProviderRateLimited
	case status == 408 || status >= 500:
		return ProviderUnavailable
	case status >= 400:
		return ProviderBadResponse
	default:
		return ProviderUnknown
	}
}
