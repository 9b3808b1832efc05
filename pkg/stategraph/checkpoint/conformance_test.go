package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreConformance exercises the Store contract against a backend.
// Every backend test file runs this same suite.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("PutAndLatest", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 0, []byte(`{"count":1}`), "next-node", StatusRunning)
		require.NoError(t, store.Put(ctx, cp))

		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ThreadID)
		assert.Equal(t, 0, got.Step)
		assert.JSONEq(t, `{"count":1}`, string(got.State))
		assert.Equal(t, "next-node", got.NextNode)
		assert.Equal(t, StatusRunning, got.Status)
		assert.False(t, got.Timestamp.IsZero())
	})

	t.Run("LatestPicksHighestStep", func(t *testing.T) {
		store := newStore(t)

		for step := 0; step < 3; step++ {
			cp := New("t1", step, []byte(`{}`), "n", StatusRunning)
			require.NoError(t, store.Put(ctx, cp))
		}

		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Step)
	})

	t.Run("LatestUnknownThread", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Latest(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateStepRejected", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 0, []byte(`{}`), "n", StatusRunning)
		require.NoError(t, store.Put(ctx, cp))

		dup := New("t1", 0, []byte(`{"other":true}`), "m", StatusRunning)
		err := store.Put(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicateStep)

		// The original record is untouched.
		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "n", got.NextNode)
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 0, []byte(`{"a":1}`), "n", StatusRunning)
		require.NoError(t, store.Put(ctx, cp))

		edited := cp.Clone()
		edited.Status = StatusFailed
		edited.Error = "node n: boom"
		require.NoError(t, store.Update(ctx, edited))

		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Equal(t, "node n: boom", got.Error)

		history, err := store.History(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("UpdateMissingRejected", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 5, []byte(`{}`), "n", StatusPaused)
		err := store.Update(ctx, cp)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("HistoryOrderedByStep", func(t *testing.T) {
		store := newStore(t)

		// Insert out of order; History must still come back ascending.
		for _, step := range []int{2, 0, 1} {
			cp := New("t1", step, []byte(`{}`), "n", StatusRunning)
			require.NoError(t, store.Put(ctx, cp))
		}

		history, err := store.History(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, history, 3)
		for i, cp := range history {
			assert.Equal(t, i, cp.Step)
		}
	})

	t.Run("HistoryUnknownThreadEmpty", func(t *testing.T) {
		store := newStore(t)

		history, err := store.History(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("ThreadIsolation", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Put(ctx, New("t1", 0, []byte(`{"who":"t1"}`), "a", StatusRunning)))
		require.NoError(t, store.Put(ctx, New("t2", 0, []byte(`{"who":"t2"}`), "b", StatusPaused)))

		got1, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		got2, err := store.Latest(ctx, "t2")
		require.NoError(t, err)
		assert.JSONEq(t, `{"who":"t1"}`, string(got1.State))
		assert.JSONEq(t, `{"who":"t2"}`, string(got2.State))
	})

	t.Run("DeleteThread", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Put(ctx, New("t1", 0, []byte(`{}`), "n", StatusRunning)))
		require.NoError(t, store.Put(ctx, New("t1", 1, []byte(`{}`), "m", StatusRunning)))
		require.NoError(t, store.Put(ctx, New("other", 0, []byte(`{}`), "n", StatusRunning)))

		require.NoError(t, store.DeleteThread(ctx, "t1"))

		_, err := store.Latest(ctx, "t1")
		assert.ErrorIs(t, err, ErrNotFound)
		history, err := store.History(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, history)

		// Other threads are untouched.
		_, err = store.Latest(ctx, "other")
		assert.NoError(t, err)
	})

	t.Run("DeleteUnknownThreadNoop", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.DeleteThread(ctx, "ghost"))
	})

	t.Run("StatusAndErrorRoundTrip", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 0, []byte(`{}`), "n", StatusFailed).WithError("routing from x: oops")
		require.NoError(t, store.Put(ctx, cp))

		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Equal(t, "routing from x: oops", got.Error)
	})

	t.Run("PausePhaseRoundTrip", func(t *testing.T) {
		store := newStore(t)

		cp := New("t1", 0, []byte(`{}`), "review", StatusPaused)
		cp.PausePhase = PhaseAfter
		require.NoError(t, store.Put(ctx, cp))

		got, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, got.Status)
		assert.Equal(t, PhaseAfter, got.PausePhase)

		got.PausePhase = PhaseBefore
		require.NoError(t, store.Update(ctx, got))

		again, err := store.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, PhaseBefore, again.PausePhase)
	})
}
