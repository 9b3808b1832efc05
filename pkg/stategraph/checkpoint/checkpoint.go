package checkpoint

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status persisted with every checkpoint.
//
// A thread moves PENDING → RUNNING → {PAUSED, COMPLETED, FAILED}.
// PAUSED transitions back to RUNNING only through an explicit resume;
// COMPLETED and FAILED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status permits no further stepping.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Pause phases recorded on a PAUSED checkpoint. A before pause means
// the pending node has not run and its interrupt is consumed by the
// next resume. An after pause means the interrupt was on the node
// that just ran, so the pending node's own interrupts still apply.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// Checkpoint is the durable snapshot of a run at one step: the state,
// the node to execute next, and the lifecycle status. Checkpoints are
// written exclusively by the executor; one record exists per
// (thread_id, step), with step indices contiguous from 0.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`

	// State is the JSON-serialized state snapshot.
	State json.RawMessage `json:"state"`

	// NextNode is the node that will execute next, or the terminal
	// sentinel. When Status is PAUSED the node has not yet run.
	NextNode string `json:"next_node"`

	Status Status `json:"status"`

	// PausePhase records which interrupt phase caused a pause:
	// PhaseBefore or PhaseAfter. Empty unless Status is PAUSED.
	PausePhase string `json:"pause_phase,omitempty"`

	// Error carries the failure message when Status is FAILED.
	Error string `json:"error,omitempty"`
}

// New creates a checkpoint. State must already be JSON-serialized.
func New(threadID string, step int, state []byte, nextNode string, status Status) *Checkpoint {
	return &Checkpoint{
		ThreadID:  threadID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Status:    status,
	}
}

// WithError sets the failure message and returns the checkpoint.
func (c *Checkpoint) WithError(msg string) *Checkpoint {
	c.Error = msg
	return c
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	out.State = make(json.RawMessage, len(c.State))
	copy(out.State, c.State)
	return &out
}

// Marshal serializes the checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
