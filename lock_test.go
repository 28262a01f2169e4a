package luzidos

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, store DocumentStore, ttl time.Duration, clock func() time.Time) *ExecutionLock {
	t.Helper()
	lock, err := NewExecutionLock(ExecutionLockOptions{
		Store: store,
		TTL:   ttl,
		Owner: "test",
		Clock: clock,
	})
	require.NoError(t, err)
	return lock
}

func TestExecutionLock(t *testing.T) {
	ctx := context.Background()
	id := WorkflowID{UserID: "user-1", InvoiceID: "inv-1"}

	t.Run("acquire and release", func(t *testing.T) {
		lock := newTestLock(t, NewMemoryDocumentStore(), 0, nil)

		acquired, err := lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		require.True(t, acquired)

		locked, err := lock.IsLocked(ctx, id)
		require.NoError(t, err)
		assert.True(t, locked)

		acquired, err = lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		assert.False(t, acquired)

		require.NoError(t, lock.Release(ctx, id))
		locked, err = lock.IsLocked(ctx, id)
		require.NoError(t, err)
		assert.False(t, locked)

		acquired, err = lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("unlocked when never initialized", func(t *testing.T) {
		lock := newTestLock(t, NewMemoryDocumentStore(), 0, nil)
		locked, err := lock.IsLocked(ctx, id)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("concurrent acquirers get at most one success", func(t *testing.T) {
		lock := newTestLock(t, NewMemoryDocumentStore(), 0, nil)
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				acquired, err := lock.TryAcquire(ctx, id)
				assert.NoError(t, err)
				if acquired {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("stale lock reclaimed after ttl", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		lock := newTestLock(t, store, time.Hour, clock)
		acquired, err := lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		require.True(t, acquired)

		// Within the TTL the holder keeps the lock.
		now = now.Add(30 * time.Minute)
		acquired, err = lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		assert.False(t, acquired)

		now = now.Add(2 * time.Hour)
		acquired, err = lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("zero ttl never reclaims", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		lock := newTestLock(t, store, 0, clock)
		acquired, err := lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		require.True(t, acquired)

		now = now.Add(1000 * time.Hour)
		acquired, err = lock.TryAcquire(ctx, id)
		require.NoError(t, err)
		assert.False(t, acquired)
	})

	t.Run("overrun holder cannot release a reclaimed lock", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		first, err := NewExecutionLock(ExecutionLockOptions{
			Store: store, TTL: time.Hour, Owner: "first", Clock: clock,
		})
		require.NoError(t, err)
		second, err := NewExecutionLock(ExecutionLockOptions{
			Store: store, TTL: time.Hour, Owner: "second", Clock: clock,
		})
		require.NoError(t, err)

		acquired, err := first.TryAcquire(ctx, id)
		require.NoError(t, err)
		require.True(t, acquired)

		// The first holder overruns its TTL and the lock is reclaimed.
		now = now.Add(2 * time.Hour)
		acquired, err = second.TryAcquire(ctx, id)
		require.NoError(t, err)
		require.True(t, acquired)

		// A late release from the overrun holder must not unlock it.
		require.NoError(t, first.Release(ctx, id))
		var doc LockDocument
		require.NoError(t, store.GetJSON(ctx, InvoiceLockPath(id), &doc))
		assert.True(t, doc.Locked)
		assert.Equal(t, "second", doc.Owner)

		// The reclaimer's own release still works.
		require.NoError(t, second.Release(ctx, id))
		locked, err := second.IsLocked(ctx, id)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("requires a store", func(t *testing.T) {
		_, err := NewExecutionLock(ExecutionLockOptions{})
		require.Error(t, err)
	})
}
