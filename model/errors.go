package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/agentlite/core"
)

// ClassifyError maps a provider failure onto the core error taxonomy.
// status is the HTTP status code reported by the provider SDK, or 0 when the
// request never produced a response (connection errors, timeouts).
//
//	context.Canceled         -> returned unchanged
//	deadline exceeded, 408   -> *core.ModelTimeoutError
//	429                      -> *core.ModelUnavailableError{RateLimited: true}
//	5xx, transport failures  -> *core.ModelUnavailableError
//	other 4xx                -> wrapped, not retryable
func ClassifyError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.ModelTimeoutError{Provider: provider, Cause: err}
	}

	switch {
	case status == 0:
		return &core.ModelUnavailableError{Provider: provider, Cause: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &core.ModelTimeoutError{Provider: provider, Cause: err}
	case status == http.StatusTooManyRequests:
		return &core.ModelUnavailableError{Provider: provider, RateLimited: true, Cause: err}
	case status >= 500:
		return &core.ModelUnavailableError{Provider: provider, Cause: err}
	default:
		return fmt.Errorf("%s api error (status %d): %w", provider, status, err)
	}
}
