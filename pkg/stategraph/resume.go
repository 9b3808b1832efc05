package stategraph

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
	"github.com/kcollins/stategraph/pkg/stategraph/observability"
)

// Resume continues a PAUSED thread from its pending node.
//
// patch, if non-nil, is merged over the checkpointed state through the
// schema's reducers before stepping continues; this is how a human
// review injects corrections. The interrupt that paused the thread is
// consumed: after a before pause the pending node executes immediately
// on resume. After an after pause the pending node has never triggered
// an interrupt of its own, so a pause-before configured on it still
// fires.
//
// Returns an InvalidStateError if the thread does not exist or is not
// PAUSED. In that case nothing is mutated.
//
// Example:
//
//	result, _ := exec.Invoke(ctx, "thread-1", initial) // pauses at review
//	result, err := exec.Resume(ctx, "thread-1", stategraph.State{
//	    "approved": true,
//	})
func (e *Executor) Resume(ctx context.Context, threadID string, patch State) (*Result, error) {
	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := e.latestFor(ctx, threadID, "resume")
	if err != nil {
		return nil, err
	}
	if latest.Status != checkpoint.StatusPaused {
		return nil, &InvalidStateError{ThreadID: threadID, Status: latest.Status, Op: "resume"}
	}

	return e.continueFrom(ctx, latest, patch, latest.PausePhase == checkpoint.PhaseBefore)
}

// UpdateState edits the latest checkpoint of a thread without stepping
// it. The patch is merged through the schema's reducers, so the same
// semantics apply as for node updates. Returns the merged state.
//
// The usual caller is a human review editing a PAUSED thread before
// Resume, but any thread with a checkpoint can be patched: correcting
// the state of a FAILED thread keeps its history inspectable with the
// fix recorded. The status is never changed here; only Resume and
// Invoke enforce lifecycle preconditions.
//
// Returns an InvalidStateError if the thread has no checkpoints.
func (e *Executor) UpdateState(ctx context.Context, threadID string, patch State) (State, error) {
	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := e.latestFor(ctx, threadID, "update_state")
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(latest.State, &state); err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "decode", Err: err}
	}

	merged, err := e.graph.schema.Apply(state, patch)
	if err != nil {
		return nil, err
	}

	stateBytes, err := json.Marshal(merged)
	if err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "encode", Err: err}
	}

	edited := latest.Clone()
	edited.State = stateBytes
	if err := e.store.Update(ctx, edited); err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "update", Err: err}
	}

	observability.LogStateUpdated(e.cfg.logger, threadID, edited.Step)
	return merged, nil
}

// CurrentState returns the state and status recorded in a thread's
// latest checkpoint. Returns an InvalidStateError if the thread has no
// checkpoints.
func (e *Executor) CurrentState(ctx context.Context, threadID string) (State, checkpoint.Status, error) {
	latest, err := e.latestFor(ctx, threadID, "current_state")
	if err != nil {
		return nil, "", err
	}

	var state State
	if err := json.Unmarshal(latest.State, &state); err != nil {
		return nil, "", &StoreError{ThreadID: threadID, Op: "decode", Err: err}
	}
	return state, latest.Status, nil
}

// History returns every checkpoint for a thread ordered by step,
// oldest first. An unknown thread yields an empty slice.
func (e *Executor) History(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	history, err := e.store.History(ctx, threadID)
	if err != nil {
		return nil, &StoreError{ThreadID: threadID, Op: "history", Err: err}
	}
	return history, nil
}

// latestFor loads the latest checkpoint, translating a missing thread
// into an InvalidStateError for the given operation.
func (e *Executor) latestFor(ctx context.Context, threadID, op string) (*checkpoint.Checkpoint, error) {
	latest, err := e.store.Latest(ctx, threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, &InvalidStateError{ThreadID: threadID, Op: op}
		}
		return nil, &StoreError{ThreadID: threadID, Op: "latest", Err: err}
	}
	return latest, nil
}
