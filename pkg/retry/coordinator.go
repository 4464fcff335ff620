// Package retry provides keyed coordination of retried executions
package retry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jyvre/retrykit/pkg/types"
)

// DefaultStatsRetention is how long statistics of a finished operation
// remain observable
const DefaultStatsRetention = 60 * time.Second

// OperationStats is a snapshot of the bookkeeping for one operation id
type OperationStats struct {
	// Attempts is the number of attempts recorded so far
	Attempts int

	// LastAttemptTime is when the most recent attempt was recorded
	LastAttemptTime time.Time
}

// runToken identifies one registered execution; cancel severs its context
type runToken struct {
	cancel context.CancelFunc
}

// statsEntry tracks attempts under one operation id. finishedAt stays zero
// while the run is still executing. owner is the token of the run that
// wrote the entry last.
type statsEntry struct {
	owner       *runToken
	attempts    int
	lastAttempt time.Time
	finishedAt  time.Time
}

// Coordinator serializes retried executions per operation id: registering a
// run under an id cancels the one already active there, every active run
// can be canceled by id or all at once, and per-id statistics remain
// observable for a retention window after completion.
type Coordinator struct {
	executor  *Executor
	clock     types.Clock
	retention time.Duration

	// synchronization
	mu     sync.RWMutex
	active map[string]*runToken
	stats  map[string]*statsEntry
}

// CoordinatorOption is a configuration option for the coordinator
type CoordinatorOption func(*Coordinator)

// WithExecutor sets the executor that carries out the runs
func WithExecutor(executor *Executor) CoordinatorOption {
	return func(c *Coordinator) {
		c.executor = executor
	}
}

// WithStatsRetention sets how long statistics of finished operations remain
// observable. Zero removes entries as soon as the run finishes.
func WithStatsRetention(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d < 0 {
			d = 0
		}
		c.retention = d
	}
}

// WithCoordinatorClock sets the clock for time operations
func WithCoordinatorClock(clock types.Clock) CoordinatorOption {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// NewCoordinator creates a coordinator
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		clock:     types.NewRealClock(),
		retention: DefaultStatsRetention,
		active:    make(map[string]*runToken),
		stats:     make(map[string]*statsEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.executor == nil {
		c.executor = NewExecutor(WithClock(c.clock))
	}

	return c
}

// Run executes op under operationID. An execution already active under the
// same id is canceled first, so at most one is ever in flight per id. The
// operation observes cancellation through its context and through a
// fail-fast check before each invocation.
func Run[T any](c *Coordinator, ctx context.Context, operationID string, cfg Config, op Operation[T]) types.Outcome[T] {
	runCtx, token := c.register(ctx, operationID)
	defer c.unregister(operationID, token)

	guarded := func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, canceledFrom(err)
		}
		return op(ctx)
	}

	callerOnRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err *types.OperationError) {
		c.recordAttempt(operationID, token, attempt)
		if callerOnRetry != nil {
			callerOnRetry(attempt, err)
		}
	}

	outcome := Execute(c.executor, runCtx, cfg, guarded)
	c.recordFinal(operationID, token, outcome.Attempts)
	return outcome
}

// RunAsync runs Run in a goroutine, delivering the outcome on the returned
// channel. The channel is buffered and closed after the send.
func RunAsync[T any](c *Coordinator, ctx context.Context, operationID string, cfg Config, op Operation[T]) <-chan types.Outcome[T] {
	outcomeChan := make(chan types.Outcome[T], 1)

	go func() {
		defer close(outcomeChan)
		outcomeChan <- Run(c, ctx, operationID, cfg, op)
	}()

	return outcomeChan
}

// Cancel signals the execution active under operationID and removes it from
// the registry. It returns false when nothing is active there. The run
// observes the signal at its next boundary; IsActive reports false as soon
// as Cancel returns.
func (c *Coordinator) Cancel(operationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, ok := c.active[operationID]
	if !ok {
		return false
	}

	token.cancel()
	delete(c.active, operationID)
	return true
}

// CancelAll signals every active execution and returns how many were signaled
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.active)
	for _, token := range c.active {
		token.cancel()
	}
	c.active = make(map[string]*runToken)
	return count
}

// IsActive reports whether an execution is registered under operationID
func (c *Coordinator) IsActive(operationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.active[operationID]
	return ok
}

// ActiveIDs returns the ids with an active execution, sorted
func (c *Coordinator) ActiveIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns a snapshot of per-operation statistics. Entries of finished
// operations expire after the retention window. Reading has no observable
// side effects.
func (c *Coordinator) Stats() map[string]OperationStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]OperationStats, len(c.stats))
	for id, entry := range c.stats {
		if c.expiredLocked(entry) {
			continue
		}
		snapshot[id] = OperationStats{
			Attempts:        entry.attempts,
			LastAttemptTime: entry.lastAttempt,
		}
	}
	return snapshot
}

// register installs a fresh token under operationID, canceling any run
// already active there
func (c *Coordinator) register(ctx context.Context, operationID string) (context.Context, *runToken) {
	runCtx, cancel := context.WithCancel(ctx)
	token := &runToken{cancel: cancel}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.active[operationID]; ok {
		prev.cancel()
	}
	c.active[operationID] = token
	c.pruneLocked()

	return runCtx, token
}

// unregister removes the token if it is still the registered one. A
// replacement run installs its own token; a superseded run must not evict
// it. The run's own context is always released.
func (c *Coordinator) unregister(operationID string, token *runToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active[operationID] == token {
		delete(c.active, operationID)
	}
	token.cancel()
}

// recordAttempt updates the stats entry for a retry reported by token's run
func (c *Coordinator) recordAttempt(operationID string, token *runToken, attempt int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.claimLocked(operationID, token)
	if !ok {
		return
	}

	entry.attempts = attempt
	entry.lastAttempt = c.clock.Now()
	entry.finishedAt = time.Time{}
}

// recordFinal stamps the final attempt count and starts the retention window
func (c *Coordinator) recordFinal(operationID string, token *runToken, attempts int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.claimLocked(operationID, token)
	if !ok {
		return
	}

	now := c.clock.Now()
	entry.attempts = attempts
	entry.lastAttempt = now
	entry.finishedAt = now
	c.pruneLocked()
}

// claimLocked resolves the stats entry token may write. A run owns the
// entry it wrote last; a superseded run must not clobber its replacement's
// records.
func (c *Coordinator) claimLocked(operationID string, token *runToken) (*statsEntry, bool) {
	entry := c.stats[operationID]
	if entry == nil {
		entry = &statsEntry{owner: token}
		c.stats[operationID] = entry
		return entry, true
	}
	if entry.owner == token || c.active[operationID] == token {
		entry.owner = token
		return entry, true
	}
	return nil, false
}

// expiredLocked reports whether entry has outlived the retention window
func (c *Coordinator) expiredLocked(entry *statsEntry) bool {
	if entry.finishedAt.IsZero() {
		return false
	}
	return c.clock.Since(entry.finishedAt) > c.retention
}

// pruneLocked drops expired entries. Write paths prune; read paths only
// filter.
func (c *Coordinator) pruneLocked() {
	for id, entry := range c.stats {
		if c.expiredLocked(entry) {
			delete(c.stats, id)
		}
	}
}
