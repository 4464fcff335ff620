// Package retry provides the retry executor implementation
package retry

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/jyvre/retrykit/pkg/types"
)

// Executor runs operations under a retry policy
type Executor struct {
	clock  types.Clock
	logger Logger
}

// Operation is the function type to retry
type Operation[T any] func(ctx context.Context) (T, error)

// Logger interface for logging
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewExecutor creates a retry executor
func NewExecutor(opts ...ExecutorOption) *Executor {
	executor := &Executor{
		clock: types.NewRealClock(), // Default to real clock
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// ExecutorOption is a configuration option for the retry executor
type ExecutorOption func(*Executor)

// WithClock sets the clock for time operations
func WithClock(clock types.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithLogger sets the logger for retry diagnostics
func WithLogger(logger Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// Execute runs op until it succeeds, exhausts cfg.MaxAttempts, fails with a
// non-retryable error, is canceled, or exceeds cfg.OverallTimeout. Every
// termination path yields an Outcome with the attempt count and elapsed wall
// time; failures are normalized to *types.OperationError, so the engine
// never propagates a raw error or panic past its own boundary.
func Execute[T any](e *Executor, ctx context.Context, cfg Config, op Operation[T]) types.Outcome[T] {
	cfg = cfg.normalized()
	start := e.clock.Now()

	var lastErr *types.OperationError

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		// check if context is cancelled
		if err := ctx.Err(); err != nil {
			return failure[T](e, start, attempt+1, canceledFrom(err))
		}

		// the overall timeout is checked between attempts only; a
		// running attempt is never interrupted
		if cfg.OverallTimeout > 0 {
			if elapsed := e.clock.Since(start); elapsed > cfg.OverallTimeout {
				timeoutErr := types.NewOperationError(types.KindLoadTimeout,
					"overall retry timeout exceeded").
					WithContext("elapsed", elapsed).
					WithContext("overall_timeout", cfg.OverallTimeout)
				return failure[T](e, start, attempt+1, timeoutErr)
			}
		}

		value, err := runOperation(ctx, op)

		// execution successful
		if err == nil {
			return types.Outcome[T]{
				Success:  true,
				Value:    value,
				Attempts: attempt + 1,
				Elapsed:  e.clock.Since(start),
			}
		}

		opErr := types.AsOperationError(err)
		lastErr = opErr

		if !cfg.allowsRetry(opErr) || attempt == cfg.MaxAttempts-1 {
			return failure[T](e, start, attempt+1, opErr)
		}

		e.notifyRetry(cfg, attempt+1, opErr)

		// an explicit per-error delay wins over the computed backoff
		delay := BackoffDelay(attempt, cfg)
		if opErr.RetryAfter > 0 {
			delay = opErr.RetryAfter
		}

		// wait for retry delay
		timer := e.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return failure[T](e, start, attempt+1, canceledFrom(ctx.Err()))
		case <-timer.C():
			// continue retrying
		}
	}

	// unreachable given the loop bounds, kept as a deterministic terminal
	if lastErr == nil {
		lastErr = types.NewOperationError(types.KindNetworkUnreachable,
			"retry loop ended without outcome")
	}
	return failure[T](e, start, cfg.MaxAttempts, lastErr)
}

// ExecuteAsync runs Execute in a goroutine, delivering the outcome on the
// returned channel. The channel is buffered and closed after the send.
func ExecuteAsync[T any](e *Executor, ctx context.Context, cfg Config, op Operation[T]) <-chan types.Outcome[T] {
	outcomeChan := make(chan types.Outcome[T], 1)

	go func() {
		defer close(outcomeChan)
		outcomeChan <- Execute(e, ctx, cfg, op)
	}()

	return outcomeChan
}

// runOperation invokes op once with panic recovery support
func runOperation[T any](ctx context.Context, op Operation[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			// record panic information
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			var opErr *types.OperationError
			switch v := r.(type) {
			case error:
				opErr = types.AsOperationError(v)
			case string:
				opErr = types.NewOperationError(types.KindNetworkUnreachable,
					fmt.Sprintf("panic: %s", v))
			default:
				opErr = types.NewOperationError(types.KindNetworkUnreachable,
					fmt.Sprintf("panic: %v", v))
			}

			opErr.WithContext("panicked", true)
			opErr.WithContext("stack_trace", string(buf[:n]))
			err = opErr
		}
	}()

	return op(ctx)
}

// notifyRetry invokes the caller's OnRetry callback. A panicking callback
// is logged and ignored; it never aborts the retry sequence.
func (e *Executor) notifyRetry(cfg Config, attempt int, err *types.OperationError) {
	if cfg.OnRetry == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Warnf("onRetry callback panicked on attempt %d: %v", attempt, r)
			}
		}
	}()

	cfg.OnRetry(attempt, err)
}

// failure builds a failed outcome stamped with the elapsed wall time
func failure[T any](e *Executor, start time.Time, attempts int, err *types.OperationError) types.Outcome[T] {
	return types.Outcome[T]{
		Err:      err,
		Attempts: attempts,
		Elapsed:  e.clock.Since(start),
	}
}

// canceledFrom converts a context error observed by the engine itself into
// the canceled OperationError
func canceledFrom(err error) *types.OperationError {
	e := types.NewCanceledError(err.Error())
	e.Cause = err
	return e
}
