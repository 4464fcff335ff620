// Package retry provides a complete retry mechanism with exponential backoff,
// error classification and keyed cancellation.
//
// Key Features:
//
// 1. Error classification:
//   - Failures are normalized into types.OperationError values
//   - Each types.ErrorKind carries a fixed retryable-or-not verdict
//   - Unclassified errors are treated as transient network failures
//   - Cancellation is always terminal and never retried
//
// 2. Backoff computation:
//   - BackoffDelay: exponential growth from BaseDelay by BackoffMultiplier
//   - Delays are capped at MaxDelay and perturbed by up to ±10% jitter
//   - Computed delays are always strictly positive
//   - A per-error RetryAfter hint overrides the computed delay
//
// 3. Retry executor:
//   - Supports synchronous and asynchronous execution
//   - Alternates between attempting and waiting until a terminal outcome
//   - Context cancellation support at every attempt and wait boundary
//   - Optional overall timeout checked between attempts
//   - Panicking operations are converted to failures, never propagated
//   - OnRetry callback between attempts, shielded from its own panics
//
// 4. Coordinator:
//   - At most one active execution per operation id
//   - Starting a run under a busy id cancels the previous run
//   - Cancel by id, or CancelAll across the registry
//   - Per-id attempt statistics retained for a window after completion
//
// 5. Process-wide handle:
//   - Default() returns a lazily created shared Coordinator
//   - ResetDefault() tears it down for test isolation
//
// Basic usage example:
//
//	// Create an executor
//	executor := retry.NewExecutor()
//
//	// Execute a function with retry
//	outcome := retry.Execute(executor, ctx, retry.DefaultConfig(), func(ctx context.Context) (string, error) {
//		// Your business logic
//		return doSomething(ctx)
//	})
//	if outcome.Success {
//		use(outcome.Value)
//	}
//
// Coordinator example:
//
//	coordinator := retry.NewCoordinator()
//
//	// Runs under the same id cancel each other
//	outcome := retry.Run(coordinator, ctx, "load-video", retry.DefaultConfig(), loadVideo)
//
//	// Cancel from another goroutine
//	coordinator.Cancel("load-video")
//
// Custom configuration:
//
//	cfg := retry.Config{
//		MaxAttempts:       3,
//		BaseDelay:         100 * time.Millisecond,
//		MaxDelay:          2 * time.Second,
//		BackoffMultiplier: 2,
//		OverallTimeout:    retry.NoOverallTimeout,
//	}
//
// Restricting retryable kinds:
//
//	cfg := retry.DefaultConfig()
//	cfg.RetryableKinds = []types.ErrorKind{types.KindNetworkTimeout}
//
// Thread safety:
//
// All public types and methods are thread-safe and can be safely used in
// concurrent environments.
package retry
