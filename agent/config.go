package agent

import (
	"errors"
	"fmt"
	"time"
)

// Config bounds a reasoning loop.
type Config struct {
	// MaxIterations caps reasoning cycles per task; 0 means unlimited.
	MaxIterations int
	// MaxModelRetries is the number of extra attempts after a retryable model failure.
	MaxModelRetries int
	// RetryBackoff is the initial delay between model retries.
	RetryBackoff time.Duration
	// MaxRetryBackoff caps the exponential retry delay.
	MaxRetryBackoff time.Duration
	// MaxParseFailures fails the task after that many consecutive malformed
	// responses; 0 means unlimited (the iteration budget still applies).
	MaxParseFailures int
	// ContextWindow limits the turns sent to the model to the most recent n;
	// 0 sends the full memory.
	ContextWindow int
}

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    10,
		MaxModelRetries:  2,
		RetryBackoff:     200 * time.Millisecond,
		MaxRetryBackoff:  5 * time.Second,
		MaxParseFailures: 3,
		ContextWindow:    0,
	}
}

// Validate reports invalid bounds.
func (c Config) Validate() error {
	var errs []error
	if c.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("max iterations must not be negative: %d", c.MaxIterations))
	}
	if c.MaxModelRetries < 0 {
		errs = append(errs, fmt.Errorf("max model retries must not be negative: %d", c.MaxModelRetries))
	}
	if c.RetryBackoff < 0 || c.MaxRetryBackoff < 0 {
		errs = append(errs, errors.New("retry backoff must not be negative"))
	}
	if c.MaxRetryBackoff > 0 && c.RetryBackoff > c.MaxRetryBackoff {
		errs = append(errs, fmt.Errorf("retry backoff %s exceeds max retry backoff %s", c.RetryBackoff, c.MaxRetryBackoff))
	}
	if c.MaxParseFailures < 0 {
		errs = append(errs, fmt.Errorf("max parse failures must not be negative: %d", c.MaxParseFailures))
	}
	if c.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("context window must not be negative: %d", c.ContextWindow))
	}
	return errors.Join(errs...)
}

// DelegationConfig bounds a manager's delegations.
type DelegationConfig struct {
	// MaxDepth is the deepest task package a delegation may create. The
	// top-level task has depth 0, so 0 disables delegation.
	MaxDepth int
	// Timeout bounds each delegated child; 0 means no timeout.
	Timeout time.Duration
	// MaxParallel caps concurrently running children of one
	// delegate_parallel call; 0 means unlimited.
	MaxParallel int
}

// DefaultDelegationConfig returns the default delegation bounds.
func DefaultDelegationConfig() DelegationConfig {
	return DelegationConfig{
		MaxDepth:    3,
		Timeout:     0,
		MaxParallel: 4,
	}
}

// Validate reports invalid bounds.
func (c DelegationConfig) Validate() error {
	var errs []error
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max delegation depth must not be negative: %d", c.MaxDepth))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("delegation timeout must not be negative: %s", c.Timeout))
	}
	if c.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("max parallel delegations must not be negative: %d", c.MaxParallel))
	}
	return errors.Join(errs...)
}
