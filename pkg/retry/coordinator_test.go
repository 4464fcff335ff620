package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyvre/retrykit/internal/testutils"
	"github.com/jyvre/retrykit/pkg/types"
)

func TestNewCoordinator(t *testing.T) {
	coord := NewCoordinator()

	assert.Empty(t, coord.ActiveIDs())
	assert.Empty(t, coord.Stats())
	assert.False(t, coord.IsActive("anything"))
	assert.False(t, coord.Cancel("anything"))
	assert.Equal(t, 0, coord.CancelAll())
}

func TestCoordinator_RunRecordsStats(t *testing.T) {
	coord := NewCoordinator(WithExecutor(NewExecutor()))

	outcome := Run(coord, context.Background(), "fetch-1", fastConfig(3), func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Attempts)
	assert.False(t, coord.IsActive("fetch-1"))

	stats := coord.Stats()
	require.Contains(t, stats, "fetch-1")
	assert.Equal(t, 1, stats["fetch-1"].Attempts)
	assert.False(t, stats["fetch-1"].LastAttemptTime.IsZero())
}

func TestCoordinator_ActiveDuringExecution(t *testing.T) {
	coord := NewCoordinator()

	started := make(chan struct{})
	release := make(chan struct{})

	outcomeChan := RunAsync(coord, context.Background(), "long-op", fastConfig(3), func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "done", nil
	})

	<-started
	assert.True(t, coord.IsActive("long-op"))
	assert.Equal(t, []string{"long-op"}, coord.ActiveIDs())

	close(release)

	select {
	case outcome := <-outcomeChan:
		require.True(t, outcome.Success)
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for outcome")
	}

	assert.False(t, coord.IsActive("long-op"))
	assert.Empty(t, coord.ActiveIDs())
}

func TestCoordinator_Cancel(t *testing.T) {
	coord := NewCoordinator()

	started := make(chan struct{})
	outcomeChan := RunAsync(coord, context.Background(), "to-cancel", fastConfig(3), func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	<-started
	require.True(t, coord.IsActive("to-cancel"))

	assert.True(t, coord.Cancel("to-cancel"))
	assert.False(t, coord.IsActive("to-cancel"))

	select {
	case outcome := <-outcomeChan:
		require.False(t, outcome.Success)
		assert.Equal(t, 1, outcome.Attempts)
		assert.True(t, types.IsCanceled(outcome.Err))
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for canceled outcome")
	}

	// Nothing left under the id
	assert.False(t, coord.Cancel("to-cancel"))
}

func TestCoordinator_ReplacementCancelsPredecessor(t *testing.T) {
	coord := NewCoordinator()

	started := make(chan struct{})
	firstChan := RunAsync(coord, context.Background(), "shared-id", fastConfig(3), func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	<-started

	second := Run(coord, context.Background(), "shared-id", fastConfig(3), func(ctx context.Context) (string, error) {
		return "replacement", nil
	})

	require.True(t, second.Success)
	assert.Equal(t, "replacement", second.Value)

	select {
	case first := <-firstChan:
		require.False(t, first.Success)
		assert.True(t, types.IsCanceled(first.Err))
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for superseded outcome")
	}

	assert.False(t, coord.IsActive("shared-id"))

	// The replacement owns the statistics
	stats := coord.Stats()
	require.Contains(t, stats, "shared-id")
	assert.Equal(t, 1, stats["shared-id"].Attempts)
}

func TestCoordinator_CancelAll(t *testing.T) {
	coord := NewCoordinator()

	ids := []string{"op-c", "op-a", "op-b"}
	var started sync.WaitGroup
	started.Add(len(ids))

	chans := make([]<-chan types.Outcome[string], 0, len(ids))
	for _, id := range ids {
		chans = append(chans, RunAsync(coord, context.Background(), id, fastConfig(3), func(ctx context.Context) (string, error) {
			started.Done()
			<-ctx.Done()
			return "", ctx.Err()
		}))
	}

	started.Wait()
	assert.Equal(t, []string{"op-a", "op-b", "op-c"}, coord.ActiveIDs())

	assert.Equal(t, 3, coord.CancelAll())
	assert.Empty(t, coord.ActiveIDs())

	for _, outcomeChan := range chans {
		select {
		case outcome := <-outcomeChan:
			require.False(t, outcome.Success)
			assert.True(t, types.IsCanceled(outcome.Err))
		case <-time.After(1 * time.Second):
			t.Fatal("Timeout waiting for canceled outcome")
		}
	}

	assert.Equal(t, 0, coord.CancelAll())
}

func TestCoordinator_PreCanceledContext(t *testing.T) {
	coord := NewCoordinator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	outcome := Run(coord, ctx, "stillborn", fastConfig(3), func(ctx context.Context) (string, error) {
		ran = true
		return "never", nil
	})

	require.False(t, outcome.Success)
	assert.False(t, ran)
	assert.Equal(t, 1, outcome.Attempts)
	assert.True(t, types.IsCanceled(outcome.Err))
	assert.False(t, coord.IsActive("stillborn"))
}

func TestCoordinator_StatsRetention(t *testing.T) {
	mock := testutils.NewMockClock(t)
	coord := NewCoordinator(WithCoordinatorClock(testutils.NewClockWrapper(mock)))

	outcome := Run(coord, context.Background(), "expiring", fastConfig(3), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.True(t, outcome.Success)
	require.Contains(t, coord.Stats(), "expiring")

	// Still visible just inside the window
	mock.Advance(DefaultStatsRetention).MustWait(context.Background())
	assert.Contains(t, coord.Stats(), "expiring")

	// Gone once the window has passed
	mock.Advance(1 * time.Second).MustWait(context.Background())
	assert.NotContains(t, coord.Stats(), "expiring")
}

func TestCoordinator_ZeroRetention(t *testing.T) {
	mock := testutils.NewMockClock(t)
	coord := NewCoordinator(
		WithCoordinatorClock(testutils.NewClockWrapper(mock)),
		WithStatsRetention(0),
	)

	outcome := Run(coord, context.Background(), "ephemeral", fastConfig(3), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.True(t, outcome.Success)

	mock.Advance(1 * time.Nanosecond).MustWait(context.Background())
	assert.Empty(t, coord.Stats())
}

func TestCoordinator_StatsSnapshotIsolation(t *testing.T) {
	coord := NewCoordinator()

	outcome := Run(coord, context.Background(), "snap", fastConfig(3), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.True(t, outcome.Success)

	first := coord.Stats()
	first["snap"] = OperationStats{Attempts: 99}
	first["injected"] = OperationStats{Attempts: 1}

	second := coord.Stats()
	assert.Equal(t, 1, second["snap"].Attempts)
	assert.NotContains(t, second, "injected")
}

func TestCoordinator_StatsTrackRetries(t *testing.T) {
	coord := NewCoordinator()

	var mu sync.Mutex
	var observed []int

	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err *types.OperationError) {
		// The coordinator records the attempt before chaining to us,
		// so the snapshot already reflects it.
		stats := coord.Stats()

		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, stats["tracked"].Attempts)
	}

	var calls int
	outcome := Run(coord, context.Background(), "tracked", cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", types.NewOperationError(types.KindServerUnavailable, "busy")
		}
		return "ok", nil
	})

	require.True(t, outcome.Success)
	assert.Equal(t, 3, outcome.Attempts)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, observed)
	mu.Unlock()

	stats := coord.Stats()
	require.Contains(t, stats, "tracked")
	assert.Equal(t, 3, stats["tracked"].Attempts)
}

func TestCoordinator_RunAsync(t *testing.T) {
	coord := NewCoordinator()

	outcomeChan := RunAsync(coord, context.Background(), "async-op", fastConfig(3), func(ctx context.Context) (string, error) {
		return "delivered", nil
	})

	select {
	case outcome := <-outcomeChan:
		require.True(t, outcome.Success)
		assert.Equal(t, "delivered", outcome.Value)
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for async outcome")
	}

	_, open := <-outcomeChan
	assert.False(t, open)
}
