package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/training-hub/training-hub/internal/domain/shared"
)

func quietSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSyncBus builds a bus that runs handlers inline so tests see effects
// without waiting.
func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, Logger: quietSlog()})
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BUS TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestInMemoryEventBus_DeliversToSubscribedType(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []shared.Event

	err := bus.Subscribe(shared.EventXPGained, func(event shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 33, 133, "module", "mod-1")))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("user-1", 2, 5)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, shared.EventXPGained, received[0].EventType())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10, "module", "mod-1")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, "Apprentice")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_PublishAfterCloseFails(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10, "module", "mod-1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_MetricsCountPublishes(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10, "module", "mod-1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.PublishedTotal)
	assert.Equal(t, int64(1), snap.HandlerExecutions)
	assert.Equal(t, int64(1), snap.HandlerSuccesses)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestDispatcher_RoutesEventsToHandlers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	d := NewDispatcher(DispatcherConfig{Bus: bus, Logger: quietSlog()})
	defer d.Stop()

	var mu sync.Mutex
	var got []string

	require.NoError(t, d.Register(shared.EventLevelUp, "level-up", func(event shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.AggregateID())
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2, "Apprentice")))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-2", 10, 10, "module", "mod-1")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"user-1"}, got)
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Bus:    newSyncBus(),
		Logger: quietSlog(),
		RetryConfig: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.Register(shared.EventLevelUp, "flaky", func(shared.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("user-1", 1, 2, "Apprentice"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_ExhaustedRetriesLandInDeadLetterQueue(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Bus:    newSyncBus(),
		Logger: quietSlog(),
		RetryConfig: RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
	defer d.Stop()

	require.NoError(t, d.Register(shared.EventLevelUp, "broken", func(shared.Event) error {
		return errors.New("permanent failure")
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("user-1", 1, 2, "Apprentice"))
	require.Error(t, err)

	require.Equal(t, 1, d.DeadLetterQueue().Size())
	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Bus:    newSyncBus(),
		Logger: quietSlog(),
		RetryConfig: RetryConfig{
			MaxRetries:        1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1.0,
		},
	})
	defer d.Stop()

	d.Use(RecoveryMiddleware(quietSlog()))

	require.NoError(t, d.Register(shared.EventLevelUp, "panicky", func(shared.Event) error {
		panic("boom")
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("user-1", 1, 2, "Apprentice"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}
