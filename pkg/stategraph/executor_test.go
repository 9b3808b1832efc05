package stategraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
)

func TestInvoke_LinearFlow(t *testing.T) {
	exec, _, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)
	assert.Equal(t, float64(3), result.State["count"])
	assert.Equal(t, "t1", result.ThreadID)
	assert.Empty(t, result.PendingNode)
}

func TestInvoke_GeneratesThreadID(t *testing.T) {
	exec, _, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "", nil)

	require.NoError(t, err)
	assert.NotEmpty(t, result.ThreadID)
}

func TestInvoke_InitialStateMergedOverDefaults(t *testing.T) {
	g := NewGraph(counterSchema()).
		AddNode("inc", increment).
		AddEdge(START, "inc").
		AddEdge("inc", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", State{"count": float64(10)})

	require.NoError(t, err)
	assert.Equal(t, float64(11), result.State["count"])
}

func TestInvoke_UnknownInitialFieldRejected(t *testing.T) {
	exec, store, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", State{"bogus": 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownField)
	// Nothing was persisted.
	assert.Equal(t, 0, store.Len())
}

func TestInvoke_SparseUpdatesMerged(t *testing.T) {
	var seenByB State
	nodeA := func(ctx Context, s State) (State, error) {
		return State{"classification": "loan"}, nil
	}
	nodeB := func(ctx Context, s State) (State, error) {
		seenByB = s
		return State{"fields": map[string]any{"amount": "10000"}}, nil
	}

	g := NewGraph(docSchema()).
		AddNode("a", nodeA).
		AddNode("b", nodeB).
		AddEdge(START, "a").
		AddEdge("a", "b").
		AddEdge("b", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", State{"document": "loan.pdf"})

	require.NoError(t, err)
	// B saw A's update merged with the untouched fields.
	assert.Equal(t, "loan.pdf", seenByB["document"])
	assert.Equal(t, "loan", seenByB["classification"])
	assert.Equal(t, "loan", result.State["classification"])
	assert.Equal(t, map[string]any{"amount": "10000"}, result.State["fields"])
}

func TestInvoke_ReducerAccumulatesAcrossNodes(t *testing.T) {
	var executed []string
	g := NewGraph(docSchema()).
		AddNode("a", makeTrackingNode("a", &executed)).
		AddNode("b", makeTrackingNode("b", &executed)).
		AddNode("c", makeTrackingNode("c", &executed)).
		AddEdge(START, "a").
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, executed)
	assert.Equal(t, []any{"a", "b", "c"}, result.State["events"])
}

func TestInvoke_ConditionalRouting(t *testing.T) {
	selector := func(ctx Context, s State) string {
		cls, _ := s["classification"].(string)
		return cls
	}

	buildExec := func(executed *[]string) *Executor {
		g := NewGraph(docSchema()).
			AddNode("classify", makeTrackingNode("classify", executed)).
			AddNode("extract", makeTrackingNode("extract", executed)).
			AddNode("reject", makeTrackingNode("reject", executed)).
			AddEdge(START, "classify").
			AddConditionalEdge("classify", selector, map[string]string{
				"loan":    "extract",
				"unknown": "reject",
			}).
			AddEdge("extract", END).
			AddEdge("reject", END)
		exec, _, err := newTestExecutor(g)
		require.NoError(t, err)
		return exec
	}

	t.Run("loan branch", func(t *testing.T) {
		var executed []string
		exec := buildExec(&executed)
		_, err := exec.Invoke(testCtx(), "t1", State{"classification": "loan"})
		require.NoError(t, err)
		assert.Equal(t, []string{"classify", "extract"}, executed)
	})

	t.Run("unknown branch", func(t *testing.T) {
		var executed []string
		exec := buildExec(&executed)
		_, err := exec.Invoke(testCtx(), "t2", State{"classification": "unknown"})
		require.NoError(t, err)
		assert.Equal(t, []string{"classify", "reject"}, executed)
	})
}

func TestInvoke_UnmappedBranchKeyFailsRun(t *testing.T) {
	g := NewGraph(docSchema()).
		AddNode("classify", passthrough).
		AddNode("extract", passthrough).
		AddEdge(START, "classify").
		AddConditionalEdge("classify",
			func(ctx Context, s State) string { return "surprise" },
			map[string]string{"loan": "extract"}).
		AddEdge("extract", END)
	exec, store, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.Error(t, err)
	var routingErr *RoutingError
	require.ErrorAs(t, err, &routingErr)
	assert.Equal(t, "classify", routingErr.FromNode)
	assert.Equal(t, "surprise", routingErr.BranchKey)
	assert.ErrorIs(t, err, ErrUnknownBranch)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)

	latest, err := store.Latest(testCtx(), "t1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, latest.Status)
	assert.Contains(t, latest.Error, "surprise")
}

func TestInvoke_NodeErrorFailsRun(t *testing.T) {
	boom := errors.New("boom")
	g := NewGraph(counterSchema()).
		AddNode("inc", increment).
		AddNode("explode", makeFailingNode(boom)).
		AddEdge(START, "inc").
		AddEdge("inc", "explode").
		AddEdge("explode", END)
	exec, store, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.Error(t, err)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "explode", nodeErr.NodeID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)
	// State reflects the last successful step.
	assert.Equal(t, float64(1), result.State["count"])

	// History is intact: step 0 and the step for "inc", with the
	// latest flipped to FAILED and no record past the failure.
	history, err := store.History(testCtx(), "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, checkpoint.StatusFailed, history[1].Status)
	assert.Equal(t, "explode", history[1].NextNode)
}

func TestInvoke_PanicRecovered(t *testing.T) {
	g := NewGraph(counterSchema()).
		AddNode("bad", makePanicNode("kaboom")).
		AddEdge(START, "bad").
		AddEdge("bad", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.Error(t, err)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "bad", panicErr.NodeID)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)
}

func TestInvoke_MaxStepsExceeded(t *testing.T) {
	g := NewGraph(counterSchema()).
		AddNode("loop", increment).
		AddEdge(START, "loop").
		AddConditionalEdge("loop",
			func(ctx Context, s State) string { return "again" },
			map[string]string{"again": "loop", "done": END})
	exec, store, err := newTestExecutor(g, WithMaxSteps(5))
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxSteps)
	var maxErr *MaxStepsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)

	latest, err := store.Latest(testCtx(), "t1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, latest.Status)
	assert.Equal(t, 5, latest.Step)
}

func TestInvoke_CancellationBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	g := NewGraph(counterSchema()).
		AddNode("first", func(c Context, s State) (State, error) {
			cancel() // takes effect before the next node
			return increment(c, s)
		}).
		AddNode("second", increment).
		AddEdge(START, "first").
		AddEdge("first", "second").
		AddEdge("second", END)
	exec, store, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(ctx, "t1", nil)

	require.Error(t, err)
	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "second", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)
	// The first node's work was persisted before cancellation hit.
	assert.Equal(t, float64(1), result.State["count"])

	history, err := store.History(testCtx(), "t1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestInvoke_CheckpointHistoryMonotonic(t *testing.T) {
	exec, store, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	require.NoError(t, err)

	history, err := store.History(testCtx(), "t1")
	require.NoError(t, err)
	// Step 0 plus one record per executed node.
	require.Len(t, history, 4)
	for i, cp := range history {
		assert.Equal(t, i, cp.Step)
		assert.Equal(t, "t1", cp.ThreadID)
	}
	assert.Equal(t, "inc1", history[0].NextNode)
	assert.Equal(t, END, history[3].NextNode)
	assert.Equal(t, checkpoint.StatusCompleted, history[3].Status)
	for _, cp := range history[:3] {
		assert.Equal(t, checkpoint.StatusRunning, cp.Status)
	}
}

func TestInvoke_CompletedThreadRejected(t *testing.T) {
	exec, _, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	require.Error(t, err)
	var invalidErr *InvalidStateError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, checkpoint.StatusCompleted, invalidErr.Status)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoke_FailedThreadRejected(t *testing.T) {
	g := NewGraph(counterSchema()).
		AddNode("bad", makeFailingNode(errors.New("boom"))).
		AddEdge(START, "bad").
		AddEdge("bad", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	require.Error(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoke_CrashedThreadContinues(t *testing.T) {
	// Simulate a crash by seeding a RUNNING checkpoint by hand, then
	// invoking the thread again.
	g := NewGraph(counterSchema()).
		AddNode("inc", increment).
		AddEdge(START, "inc").
		AddEdge("inc", END)
	compiled, err := g.Compile()
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	cp := checkpoint.New("t1", 0, []byte(`{"count":41}`), "inc", checkpoint.StatusRunning)
	require.NoError(t, store.Put(testCtx(), cp))

	exec := NewExecutor(compiled, store)
	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)
	assert.Equal(t, float64(42), result.State["count"])
}

func TestInvoke_NodesSeeIsolatedState(t *testing.T) {
	// A node mutating its input must not corrupt the engine's copy.
	g := NewGraph(counterSchema()).
		AddNode("mutator", func(ctx Context, s State) (State, error) {
			s["count"] = float64(999)
			return nil, nil
		}).
		AddNode("reader", increment).
		AddEdge(START, "mutator").
		AddEdge("mutator", "reader").
		AddEdge("reader", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	result, err := exec.Invoke(testCtx(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, float64(1), result.State["count"])
}

func TestInvoke_ContextMetadataVisibleToNodes(t *testing.T) {
	var gotThread, gotNode string
	var gotStep int
	g := NewGraph(counterSchema()).
		AddNode("probe", func(ctx Context, s State) (State, error) {
			gotThread = ctx.ThreadID()
			gotNode = ctx.NodeID()
			gotStep = ctx.Step()
			require.NotNil(t, ctx.Logger())
			return nil, nil
		}).
		AddEdge(START, "probe").
		AddEdge("probe", END)
	exec, _, err := newTestExecutor(g)
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, "t1", gotThread)
	assert.Equal(t, "probe", gotNode)
	assert.Equal(t, 0, gotStep)
}

func TestNewExecutor_PanicsOnNilArgs(t *testing.T) {
	compiled, err := linearCounterGraph().Compile()
	require.NoError(t, err)

	assert.Panics(t, func() { NewExecutor(nil, checkpoint.NewMemoryStore()) })
	assert.Panics(t, func() { NewExecutor(compiled, nil) })
}

func TestInvoke_ConcurrentThreadsIsolated(t *testing.T) {
	exec, store, err := newTestExecutor(linearCounterGraph())
	require.NoError(t, err)

	const workers = 16
	results := make([]*Result, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = exec.Invoke(testCtx(), fmt.Sprintf("t-%d", i), nil)
		}(i)
	}
	wg.Wait()

	// Every thread completed independently with its own contiguous
	// history, untouched by its neighbors.
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, checkpoint.StatusCompleted, results[i].Status)
		assert.Equal(t, float64(3), results[i].State["count"])

		history, err := store.History(testCtx(), fmt.Sprintf("t-%d", i))
		require.NoError(t, err)
		require.Len(t, history, 4)
		for step, cp := range history {
			assert.Equal(t, step, cp.Step)
		}
	}
}

func TestUpdateState_ConcurrentEditsSerialized(t *testing.T) {
	g := NewGraph(docSchema()).
		AddNode("a", passthrough).
		AddNode("b", passthrough).
		AddEdge(START, "a").
		AddEdge("a", "b").
		AddEdge("b", END)
	exec, store, err := newTestExecutor(g, WithInterruptBefore("b"))
	require.NoError(t, err)

	_, err = exec.Invoke(testCtx(), "t1", nil)
	require.NoError(t, err)

	// Each edit appends one event. The per-thread lock makes every
	// read-merge-write atomic, so no edit is lost.
	const editors = 8
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := exec.UpdateState(testCtx(), "t1", State{"events": fmt.Sprintf("edit-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, status, err := exec.CurrentState(testCtx(), "t1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusPaused, status)
	events, ok := state["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, editors)

	// Edits never advance the step: still exactly two checkpoints.
	history, err := store.History(testCtx(), "t1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	result, err := exec.Resume(testCtx(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)
}

func BenchmarkInvoke_Linear(b *testing.B) {
	exec, _, err := newTestExecutor(linearCounterGraph())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Invoke(context.Background(), "", nil); err != nil {
			b.Fatal(err)
		}
	}
}
