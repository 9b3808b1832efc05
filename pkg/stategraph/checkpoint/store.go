// Package checkpoint provides durable checkpoint storage for
// pause/resume and crash recovery.
//
// A checkpoint records the state snapshot, the next node, and the
// lifecycle status of a thread at one step. Stores keep the full
// history per thread: Put appends, it never overwrites, so step
// indices stay contiguous and History reflects real execution order.
// The only in-place mutation is Update, which the executor uses for
// status flips (pause, completion, failure) and human review edits.
package checkpoint

import (
	"context"
	"errors"
)

// Store persists checkpoints keyed by (thread_id, step).
// Implementations must be safe for concurrent use across threads.
type Store interface {
	// Put appends a checkpoint. A record for the same (thread_id, step)
	// must not already exist; returns ErrDuplicateStep if it does.
	Put(ctx context.Context, cp *Checkpoint) error

	// Update replaces the existing record at (thread_id, step) in place.
	// Returns ErrNotFound if no such record exists.
	Update(ctx context.Context, cp *Checkpoint) error

	// Latest returns the checkpoint with the highest step for the thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// History returns all checkpoints for the thread ordered by step,
	// oldest first. Returns an empty slice (not an error) for an
	// unknown thread.
	History(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// DeleteThread removes all checkpoints for a thread.
	// Returns nil if the thread has none.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates the requested checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrDuplicateStep indicates a Put for a (thread_id, step) that
	// already has a record.
	ErrDuplicateStep = errors.New("checkpoint step already exists")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
