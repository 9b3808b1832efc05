package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
	"github.com/kcollins/stategraph/pkg/stategraph/observability"
)

// Executor runs a compiled graph against a checkpoint store. It owns
// the run lifecycle: stepping through nodes, merging updates, writing
// checkpoints, pausing at interrupts, and resuming paused threads.
//
// Executor is safe for concurrent use. Operations on the same thread
// ID are serialized; operations on different threads proceed in
// parallel.
type Executor struct {
	graph *CompiledGraph
	store checkpoint.Store
	cfg   executorConfig

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// Result reports the outcome of an Invoke or Resume call.
type Result struct {
	// ThreadID identifies the thread, auto-generated when Invoke was
	// called with an empty one.
	ThreadID string

	// Status is the thread's status after the call: COMPLETED, PAUSED,
	// or FAILED.
	Status checkpoint.Status

	// State is the merged state at the point the run stopped.
	State State

	// PendingNode is the node that will execute on resume.
	// Set only when Status is PAUSED.
	PendingNode string

	// Err is the failure cause when Status is FAILED.
	Err error
}

// NewExecutor creates an executor over a compiled graph and a
// checkpoint store. Panics if either is nil.
func NewExecutor(graph *CompiledGraph, store checkpoint.Store, opts ...Option) *Executor {
	if graph == nil {
		panic("stategraph: compiled graph cannot be nil")
	}
	if store == nil {
		panic("stategraph: checkpoint store cannot be nil")
	}

	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor{
		graph:   graph,
		store:   store,
		cfg:     cfg,
		threads: make(map[string]*sync.Mutex),
	}
}

// threadLock returns the mutex serializing operations on a thread.
func (e *Executor) threadLock(threadID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		e.threads[threadID] = lock
	}
	return lock
}

// Invoke starts or continues a thread.
//
// For a thread with no checkpoints, initial is merged over the
// schema defaults and the run starts at the entry node. An empty
// threadID gets a generated UUID, returned in Result.ThreadID.
//
// For a PAUSED thread, Invoke behaves like Resume: initial (which may
// be nil) is merged as a review patch and the run continues from the
// pending node. A RUNNING thread is treated as a crashed run and
// continued from its last checkpoint. Invoking a COMPLETED or FAILED
// thread returns an InvalidStateError.
//
// The returned Result carries the state at the point the run stopped;
// on failure the error is returned as well.
func (e *Executor) Invoke(ctx context.Context, threadID string, initial State) (*Result, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := e.store.Latest(ctx, threadID)
	if err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, &StoreError{ThreadID: threadID, Op: "latest", Err: err}
	}

	if latest != nil {
		switch latest.Status {
		case checkpoint.StatusPaused:
			// A before pause is consumed by resuming; an after pause was
			// the predecessor's interrupt, so the pending node's own
			// pause-before still applies.
			return e.continueFrom(ctx, latest, initial, latest.PausePhase == checkpoint.PhaseBefore)
		case checkpoint.StatusRunning, checkpoint.StatusPending:
			// Crash recovery: continue from the last durable step.
			return e.continueFrom(ctx, latest, initial, false)
		default:
			return nil, &InvalidStateError{ThreadID: threadID, Status: latest.Status, Op: "invoke"}
		}
	}

	state, err := e.graph.schema.Apply(e.graph.schema.Defaults(), initial)
	if err != nil {
		return nil, err
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("serialize initial state: %w", err)
	}

	cp := checkpoint.New(threadID, 0, stateBytes, e.graph.entryPoint, checkpoint.StatusRunning)
	if err := e.store.Put(ctx, cp); err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "put", Err: err}
	}
	observability.LogCheckpoint(e.cfg.logger, threadID, 0, len(stateBytes))
	e.cfg.metrics.RecordCheckpoint(ctx, threadID, int64(len(stateBytes)))

	observability.LogRunStart(e.cfg.logger, threadID, 0)
	ec := e.newContext(ctx, threadID)
	return e.runLoop(ec, state, e.graph.entryPoint, 0, cp, false)
}

// newContext wraps a standard context with execution metadata.
func (e *Executor) newContext(ctx context.Context, threadID string) *executionContext {
	return &executionContext{
		Context:  ctx,
		logger:   e.cfg.logger,
		threadID: threadID,
	}
}

// continueFrom restarts stepping from a thread's latest checkpoint,
// optionally merging a review patch first. Callers hold the thread lock.
func (e *Executor) continueFrom(ctx context.Context, latest *checkpoint.Checkpoint, patch State, skipPauseBefore bool) (*Result, error) {
	threadID := latest.ThreadID

	var state State
	if err := json.Unmarshal(latest.State, &state); err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "decode", Err: err}
	}

	if len(patch) > 0 {
		merged, err := e.graph.schema.Apply(state, patch)
		if err != nil {
			return nil, err
		}
		state = merged
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}

	resumed := latest.Clone()
	resumed.State = stateBytes
	resumed.Status = checkpoint.StatusRunning
	resumed.PausePhase = ""
	if err := e.store.Update(ctx, resumed); err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "update", Err: err}
	}

	observability.LogRunResumed(e.cfg.logger, threadID, resumed.NextNode, resumed.Step)
	ec := e.newContext(ctx, threadID)

	if resumed.NextNode == END {
		return e.complete(ec, resumed, state, time.Now())
	}
	return e.runLoop(ec, state, resumed.NextNode, resumed.Step, resumed, skipPauseBefore)
}

// runLoop is the step loop: execute the current node, merge its
// update, route, persist, repeat until END, a pause, or a failure.
//
// last is the most recent durable checkpoint; its status is flipped in
// place on pause, completion, and failure. skipPauseBefore suppresses
// the pause-before check for the first iteration only, so a resumed
// thread does not re-trigger the interrupt it just consumed.
func (e *Executor) runLoop(ec *executionContext, state State, current string, step int, last *checkpoint.Checkpoint, skipPauseBefore bool) (result *Result, runErr error) {
	threadID := ec.threadID
	runStart := time.Now()

	tracingCtx, runSpan := e.cfg.spans.StartRunSpan(ec, threadID)
	defer func() {
		e.cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	for current != END {
		if step >= e.cfg.maxSteps {
			return e.fail(ec, last, state, &MaxStepsError{Max: e.cfg.maxSteps, LastNodeID: current}, runStart)
		}

		// Cancellation is honored between steps only; a node that has
		// started always runs to completion.
		select {
		case <-ec.Done():
			return e.fail(ec, last, state, &CancellationError{NodeID: current, Cause: context.Cause(ec)}, runStart)
		default:
		}

		if !skipPauseBefore && e.cfg.interrupts.PauseBefore(current) {
			return e.pause(ec, last, state, current, checkpoint.PhaseBefore, runStart)
		}
		skipPauseBefore = false

		nodeCtx := ec.withNode(current, step)
		observability.LogNodeStart(nodeCtx.logger, current)

		nodeTracingCtx, nodeSpan := e.cfg.spans.StartNodeSpan(tracingCtx, current)
		nodeStart := time.Now()

		update, nodeErr := e.executeNode(nodeCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		e.cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)
		e.cfg.spans.EndSpanWithError(nodeSpan, nodeErr)

		if nodeErr != nil {
			observability.LogNodeError(nodeCtx.logger, current, nodeErr)
			return e.fail(ec, last, state, nodeErr, runStart)
		}
		observability.LogNodeComplete(nodeCtx.logger, current, float64(nodeDuration.Milliseconds()))

		merged, err := e.graph.schema.Apply(state, update)
		if err != nil {
			return e.fail(ec, last, state, &NodeError{NodeID: current, Op: "merge", Err: err}, runStart)
		}

		next, err := e.nextNode(nodeCtx, current, merged)
		if err != nil {
			return e.fail(ec, last, merged, err, runStart)
		}

		step++
		status := checkpoint.StatusRunning
		pausedAfter := false
		// A run about to finish is not pausable; pausing after the
		// final node would strand a done thread in PAUSED.
		if next != END && e.cfg.interrupts.PauseAfter(current) {
			status = checkpoint.StatusPaused
			pausedAfter = true
		}

		stateBytes, err := json.Marshal(merged)
		if err != nil {
			return e.fail(ec, last, merged, &NodeError{NodeID: current, Op: "serialize", Err: err}, runStart)
		}

		cp := checkpoint.New(threadID, step, stateBytes, next, status)
		if pausedAfter {
			cp.PausePhase = checkpoint.PhaseAfter
		}
		if err := e.store.Put(ec, cp); err != nil {
			return e.fail(ec, last, merged, &StoreError{ThreadID: threadID, Op: "put", Err: err}, runStart)
		}
		observability.LogCheckpoint(nodeCtx.logger, threadID, step, len(stateBytes))
		e.cfg.metrics.RecordCheckpoint(ec, threadID, int64(len(stateBytes)))

		last = cp
		state = merged

		if pausedAfter {
			e.cfg.metrics.RecordInterrupt(ec, current, checkpoint.PhaseAfter)
			observability.LogRunPaused(e.cfg.logger, threadID, next, step)
			e.cfg.metrics.RecordRun(ec, "paused", time.Since(runStart))
			return &Result{ThreadID: threadID, Status: checkpoint.StatusPaused, State: state, PendingNode: next}, nil
		}

		current = next
	}

	return e.complete(ec, last, state, runStart)
}

// pause flips the latest checkpoint to PAUSED without executing the
// pending node.
func (e *Executor) pause(ec *executionContext, last *checkpoint.Checkpoint, state State, pendingNode, phase string, runStart time.Time) (*Result, error) {
	paused := last.Clone()
	paused.Status = checkpoint.StatusPaused
	paused.PausePhase = phase
	if err := e.store.Update(ec, paused); err != nil {
		return e.fail(ec, last, state, &StoreError{ThreadID: ec.threadID, Op: "update", Err: err}, runStart)
	}

	e.cfg.metrics.RecordInterrupt(ec, pendingNode, phase)
	observability.LogRunPaused(e.cfg.logger, ec.threadID, pendingNode, paused.Step)
	e.cfg.metrics.RecordRun(ec, "paused", time.Since(runStart))

	return &Result{ThreadID: ec.threadID, Status: checkpoint.StatusPaused, State: state, PendingNode: pendingNode}, nil
}

// complete flips the latest checkpoint to COMPLETED.
func (e *Executor) complete(ec *executionContext, last *checkpoint.Checkpoint, state State, runStart time.Time) (*Result, error) {
	done := last.Clone()
	done.Status = checkpoint.StatusCompleted
	if err := e.store.Update(ec, done); err != nil {
		return e.fail(ec, last, state, &StoreError{ThreadID: ec.threadID, Op: "update", Err: err}, runStart)
	}

	duration := time.Since(runStart)
	observability.LogRunComplete(e.cfg.logger, ec.threadID, float64(duration.Milliseconds()), done.Step)
	e.cfg.metrics.RecordRun(ec, "completed", duration)

	return &Result{ThreadID: ec.threadID, Status: checkpoint.StatusCompleted, State: state}, nil
}

// fail flips the latest checkpoint to FAILED with the cause recorded.
// The checkpoint history is left intact: the failed thread can still
// be inspected, it just cannot be stepped further.
func (e *Executor) fail(ec *executionContext, last *checkpoint.Checkpoint, state State, cause error, runStart time.Time) (*Result, error) {
	if last != nil {
		failed := last.Clone()
		failed.Status = checkpoint.StatusFailed
		failed.Error = cause.Error()
		if err := e.store.Update(ec, failed); err != nil {
			e.cfg.logger.Error("persisting failure status",
				"thread_id", ec.threadID, "error", err)
		}
	}

	observability.LogRunError(e.cfg.logger, ec.threadID, cause, failedNode(cause))
	e.cfg.metrics.RecordRun(ec, "failed", time.Since(runStart))

	return &Result{ThreadID: ec.threadID, Status: checkpoint.StatusFailed, State: state, Err: cause}, cause
}

// failedNode extracts the node associated with a failure, if any.
func failedNode(err error) string {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.NodeID
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.NodeID
	}
	var routingErr *RoutingError
	if errors.As(err, &routingErr) {
		return routingErr.FromNode
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.NodeID
	}
	var maxErr *MaxStepsError
	if errors.As(err, &maxErr) {
		return maxErr.LastNodeID
	}
	return ""
}

// executeNode executes a single node with panic recovery.
// Returns the node's partial update and any error (including wrapped
// panics).
func (e *Executor) executeNode(ctx Context, nodeID string, state State) (update State, err error) {
	fn, exists := e.graph.getNode(nodeID)
	if !exists {
		// Unreachable after a successful Compile; guards corrupted
		// checkpoints pointing at nodes removed from the graph.
		return nil, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			update = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err = fn(ctx, state.Clone())
	if err != nil {
		return nil, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return update, nil
}

// nextNode resolves the destination after a node: either the plain
// edge target or the conditional branch chosen by the selector.
func (e *Executor) nextNode(ctx Context, current string, state State) (string, error) {
	if cond, ok := e.graph.getConditional(current); ok {
		key := cond.selector(ctx, state.Clone())
		dest, ok := cond.branches[key]
		if !ok {
			return "", &RoutingError{
				FromNode:  current,
				BranchKey: key,
				Err:       ErrUnknownBranch,
			}
		}
		return dest, nil
	}

	if to, ok := e.graph.getEdge(current); ok {
		return to, nil
	}

	// Unreachable after a successful Compile.
	return "", &RoutingError{
		FromNode: current,
		Err:      ErrDeadEnd,
	}
}
