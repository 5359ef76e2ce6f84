package model

import (
	"context"
	"errors"

	"github.com/hupe1980/tripmesh/core"
)

// WrapError converts a provider SDK failure into a *core.ProviderError using
// the HTTP status the SDK exposed (0 when none). Context errors pass through
// unchanged so callers can tell cancellation and deadlines apart from
// backend failures.
func WrapError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pe *core.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	return core.NewProviderError(provider, status, err)
}

// EmptyResponseError reports a response without any usable candidate.
func EmptyResponseError(provider string) error {
	return &core.ProviderError{Provider: provider, Kind: core.ProviderBadResponse, Err: core.ErrEmptyResponse}
}
