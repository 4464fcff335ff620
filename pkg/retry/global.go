// Package retry provides the process-wide default coordinator
package retry

import "sync"

// Process-wide default coordinator
var (
	defaultCoordinator   *Coordinator
	defaultCoordinatorMu sync.Mutex
)

// Default returns the shared coordinator, creating it on first use. Most
// programs should construct their own Coordinator; the shared instance
// exists for callers without a natural place to keep one.
func Default() *Coordinator {
	defaultCoordinatorMu.Lock()
	defer defaultCoordinatorMu.Unlock()

	if defaultCoordinator == nil {
		defaultCoordinator = NewCoordinator()
	}
	return defaultCoordinator
}

// ResetDefault cancels everything active on the shared coordinator and
// discards it; the next Default call creates a fresh one. Intended for
// test isolation.
func ResetDefault() {
	defaultCoordinatorMu.Lock()
	defer defaultCoordinatorMu.Unlock()

	if defaultCoordinator != nil {
		defaultCoordinator.CancelAll()
		defaultCoordinator = nil
	}
}
