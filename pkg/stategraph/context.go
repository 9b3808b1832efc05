package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes and selectors.
// It extends context.Context with execution metadata and a logger.
//
// Context is immutable after creation. The executor creates derived
// contexts for each node with updated NodeID, Step, and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with thread and
	// node context. Never returns nil; defaults to slog.Default().
	Logger() *slog.Logger

	// ThreadID returns the identifier of the thread being executed.
	ThreadID() string

	// NodeID returns the node currently executing.
	// Empty string before execution starts.
	NodeID() string

	// Step returns the step index the engine is executing.
	Step() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	threadID string
	nodeID   string
	step     int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// ThreadID returns the thread identifier.
func (c *executionContext) ThreadID() string {
	return c.threadID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Step returns the current step index.
func (c *executionContext) Step() int {
	return c.step
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithContextLogger sets the logger for the context.
// The logger is enriched with thread_id, node_id, and step during
// execution.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextThreadID sets the thread identifier for the context.
// If not set, a UUID is auto-generated. Mostly useful for testing
// nodes directly; Invoke and Resume set this themselves.
func WithContextThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// execution metadata.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithContextLogger(myLogger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:  ctx,
		logger:   slog.Default(),
		threadID: uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNode returns a new context with the node ID and step set.
// Used internally by the executor to enrich the context per node.
func (c *executionContext) withNode(nodeID string, step int) *executionContext {
	return &executionContext{
		Context:  c.Context,
		logger:   c.logger.With("thread_id", c.threadID, "node_id", nodeID, "step", step),
		threadID: c.threadID,
		nodeID:   nodeID,
		step:     step,
	}
}
