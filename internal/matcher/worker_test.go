package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltlab/tripmatch/internal/core/trip"
	"github.com/boltlab/tripmatch/internal/notifier"
)

func TestWorkerPool_ProcessesDeliveries(t *testing.T) {
	partials := newFakePartials()
	completed := newFakeCompleted()
	svc := newTestService(partials, completed)
	ctx := context.Background()

	require.NoError(t, partials.Put(ctx, half(t, "trip-1", trip.KindStart, "2024-07-15 08:30:00", "12.00")))
	require.NoError(t, partials.Put(ctx, half(t, "trip-1", trip.KindEnd, "2024-07-15 09:00:00", "10.50")))

	n := notifier.NewInMemory(16)
	require.NoError(t, n.Publish(ctx, "trip-1", trip.KindStart, notifier.WriteInsert))
	require.NoError(t, n.Publish(ctx, "trip-1", trip.KindEnd, notifier.WriteInsert))
	require.NoError(t, n.Close())

	pool := NewWorkerPool(svc, n, 4, time.Second)
	require.NoError(t, pool.Run(ctx), "pool drains the closed channel and returns")

	ct, err := completed.Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.True(t, ct.FareAmount.Equal(decimal.RequireFromString("10.50")))
	assert.Equal(t, int64(1), completed.creates.Load())
}

func TestWorkerPool_IgnoresDeleteNotifications(t *testing.T) {
	partials := newFakePartials()
	completed := newFakeCompleted()
	svc := newTestService(partials, completed)
	ctx := context.Background()

	require.NoError(t, partials.Put(ctx, half(t, "trip-1", trip.KindStart, "2024-07-15 08:30:00", "12.00")))
	require.NoError(t, partials.Put(ctx, half(t, "trip-1", trip.KindEnd, "2024-07-15 09:00:00", "10.50")))

	n := notifier.NewInMemory(16)
	// Cleanup deletes echo back through the stream; they must not
	// trigger matching.
	require.NoError(t, n.Publish(ctx, "trip-1", trip.KindStart, notifier.WriteDelete))
	require.NoError(t, n.Close())

	pool := NewWorkerPool(svc, n, 2, time.Second)
	require.NoError(t, pool.Run(ctx))

	assert.Equal(t, int64(0), completed.creates.Load())
	assert.True(t, partials.has("trip-1", trip.KindStart))
}

func TestWorkerPool_FailedInvocationDoesNotStopPool(t *testing.T) {
	partials := newFakePartials()
	completed := newFakeCompleted()
	svc := newTestService(partials, completed)
	ctx := context.Background()

	require.NoError(t, partials.Put(ctx, half(t, "trip-ok", trip.KindStart, "2024-07-15 08:30:00", "12.00")))
	require.NoError(t, partials.Put(ctx, half(t, "trip-ok", trip.KindEnd, "2024-07-15 09:00:00", "10.50")))

	partials.getFailures = 4 // first invocation exhausts its 3 attempts

	n := notifier.NewInMemory(16)
	require.NoError(t, n.Publish(ctx, "trip-doomed", trip.KindStart, notifier.WriteInsert))
	require.NoError(t, n.Publish(ctx, "trip-ok", trip.KindEnd, notifier.WriteInsert))
	require.NoError(t, n.Close())

	// Single worker so the doomed delivery is handled first.
	pool := NewWorkerPool(svc, n, 1, time.Second)
	require.NoError(t, pool.Run(ctx))

	_, err := completed.Get(ctx, "trip-ok")
	assert.NoError(t, err, "pool kept consuming after a failed invocation")
}

func TestWorkerPool_StopsOnContextCancel(t *testing.T) {
	svc := newTestService(newFakePartials(), newFakeCompleted())
	n := notifier.NewInMemory(16)
	defer n.Close()

	pool := NewWorkerPool(svc, n, 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}
