package stategraph

import (
	"errors"
	"fmt"

	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates no entry node was designated before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge or branch references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrAmbiguousFanOut indicates a node has more than one routing rule:
	// several unconditional edges, or an unconditional edge alongside a
	// conditional edge. Each node's outgoing routing must be exactly one
	// edge or one conditional edge.
	ErrAmbiguousFanOut = errors.New("ambiguous fan-out")

	// ErrDeadEnd indicates a node reachable from the entry has no
	// outgoing routing at all.
	ErrDeadEnd = errors.New("node has no outgoing edge")
)

// Sentinel errors for state merging and execution.
var (
	// ErrUnknownField indicates a partial update touched a field the
	// schema does not declare.
	ErrUnknownField = errors.New("unknown state field")

	// ErrUnknownBranch indicates a selector returned a branch key absent
	// from its branch map.
	ErrUnknownBranch = errors.New("branch key not in branch map")

	// ErrMaxSteps indicates the execution loop exceeded the configured limit.
	ErrMaxSteps = errors.New("exceeded maximum steps")

	// ErrInvalidState indicates an operation was attempted against a
	// thread in the wrong lifecycle status (e.g. Resume on a thread that
	// is not paused).
	ErrInvalidState = errors.New("invalid thread state")
)

// NodeError wraps a node capability failure with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g. "execute", "merge").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// RoutingError reports a conditional edge that could not resolve a
// destination. It is terminal: the run transitions to FAILED and the
// engine never retries routing.
type RoutingError struct {
	// FromNode is the node whose conditional edge failed.
	FromNode string
	// BranchKey is the key the selector returned.
	BranchKey string
	// Err is the underlying error (usually ErrUnknownBranch).
	Err error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing from %s: branch %q: %v", e.FromNode, e.BranchKey, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// StoreError wraps a checkpoint store failure. The run never advances
// past a failed write: in-memory state is not authoritative until it
// has been durably persisted.
type StoreError struct {
	// ThreadID scopes the failed operation.
	ThreadID string
	// Op is the store operation that failed ("put", "update", "latest", "history").
	Op string
	// Err is the underlying store error.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("checkpoint %s for thread %s: %v", e.Op, e.ThreadID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// InvalidStateError reports an operation against a thread whose
// lifecycle status does not permit it. No state is mutated.
type InvalidStateError struct {
	// ThreadID is the thread the operation targeted.
	ThreadID string
	// Status is the thread's current status (empty when no checkpoint exists).
	Status checkpoint.Status
	// Op is the rejected operation ("resume", "invoke", "update_state").
	Op string
}

func (e *InvalidStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s thread %s: no checkpoint", e.Op, e.ThreadID)
	}
	return fmt.Sprintf("%s thread %s: status %s", e.Op, e.ThreadID, e.Status)
}

// Unwrap returns ErrInvalidState for errors.Is support.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// CancellationError captures a run cancelled between steps. The
// pending node was not executed.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Cause is the underlying cancellation cause.
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// MaxStepsError provides context when the step limit is exceeded.
type MaxStepsError struct {
	// Max is the configured step limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
}

func (e *MaxStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxSteps for errors.Is support.
func (e *MaxStepsError) Unwrap() error {
	return ErrMaxSteps
}
