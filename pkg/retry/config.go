// Package retry provides retry policy configuration
package retry

import (
	"time"

	"github.com/jyvre/retrykit/pkg/types"
)

// Defaults applied when Config fields are zero or invalid
const (
	DefaultMaxAttempts       = 5
	DefaultBaseDelay         = 1000 * time.Millisecond
	DefaultMaxDelay          = 16000 * time.Millisecond
	DefaultBackoffMultiplier = 2.0
	DefaultOverallTimeout    = 30000 * time.Millisecond
)

// NoOverallTimeout disables the overall execution deadline
const NoOverallTimeout = time.Duration(-1)

// OnRetryFunc is invoked after a failed attempt when another attempt will
// follow. attempt is the 1-based number of the attempt that just failed.
type OnRetryFunc func(attempt int, err *types.OperationError)

// Config controls a single retried execution. The zero value means
// "all defaults"; individual zero fields are filled in the same way.
// A Config is treated as immutable once an execution starts.
type Config struct {
	// MaxAttempts is the total number of attempts, first try included
	MaxAttempts int

	// BaseDelay is the delay before the second attempt
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential growth factor, at least 1
	BackoffMultiplier float64

	// OverallTimeout bounds the whole execution. It is checked between
	// attempts only; a running attempt is never interrupted. Zero means
	// the default, NoOverallTimeout disables the bound.
	OverallTimeout time.Duration

	// RetryableKinds, when non-nil, overrides the per-error verdict:
	// only failures of a listed kind are retried. Cancellation is never
	// retried regardless of the list.
	RetryableKinds []types.ErrorKind

	// OnRetry is called before each backoff wait
	OnRetry OnRetryFunc
}

// DefaultConfig returns the standard retry configuration: 5 attempts,
// 1s base delay doubling up to 16s, 30s overall timeout, retryability
// decided by each error's kind.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		OverallTimeout:    DefaultOverallTimeout,
	}
}

// normalized returns a copy with zero or invalid fields replaced by
// defaults and inconsistent bounds repaired. Internally a zero
// OverallTimeout means "disabled" after normalization.
func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	} else if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 1
	}
	if c.OverallTimeout == 0 {
		c.OverallTimeout = DefaultOverallTimeout
	} else if c.OverallTimeout < 0 {
		c.OverallTimeout = 0
	}
	return c
}

// allowsRetry decides whether another attempt may follow err. The
// RetryableKinds override takes precedence over the error's own verdict;
// cancellation wins over both.
func (c Config) allowsRetry(err *types.OperationError) bool {
	if types.IsCanceled(err) {
		return false
	}
	if c.RetryableKinds == nil {
		return err.Retryable
	}
	for _, k := range c.RetryableKinds {
		if k == err.Kind {
			return true
		}
	}
	return false
}
