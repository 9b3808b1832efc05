package stategraph

import (
	"context"

	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
)

// Shared schemas and node helpers used across tests.

// counterSchema has a single numeric field. JSON round-trips turn
// numbers into float64, so assertions use float64.
func counterSchema() *Schema {
	return NewSchema(Field{Name: "count", Default: float64(0)})
}

// docSchema mirrors a document pipeline: a document, a classification,
// extracted fields, and an append-only event log.
func docSchema() *Schema {
	return NewSchema(
		Field{Name: "document"},
		Field{Name: "classification"},
		Field{Name: "fields"},
		Field{Name: "events", Reduce: Append},
	)
}

// increment bumps the counter by one.
func increment(ctx Context, s State) (State, error) {
	count, _ := s["count"].(float64)
	return State{"count": count + 1}, nil
}

// passthrough returns no update.
func passthrough(ctx Context, s State) (State, error) {
	return nil, nil
}

// makeTrackingNode records executions and appends to the events field.
func makeTrackingNode(name string, tracker *[]string) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		*tracker = append(*tracker, name)
		return State{"events": name}, nil
	}
}

// makeFailingNode returns the given error.
func makeFailingNode(err error) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		return nil, err
	}
}

// makePanicNode panics with the given value.
func makePanicNode(value any) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		panic(value)
	}
}

// linearCounterGraph is a three-step increment chain.
func linearCounterGraph() *Graph {
	return NewGraph(counterSchema()).
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddNode("inc3", increment).
		AddEdge(START, "inc1").
		AddEdge("inc1", "inc2").
		AddEdge("inc2", "inc3").
		AddEdge("inc3", END)
}

// newTestExecutor compiles the graph and wires a memory store.
func newTestExecutor(g *Graph, opts ...Option) (*Executor, *checkpoint.MemoryStore, error) {
	compiled, err := g.Compile()
	if err != nil {
		return nil, nil, err
	}
	store := checkpoint.NewMemoryStore()
	return NewExecutor(compiled, store, opts...), store, nil
}

func testCtx() context.Context {
	return context.Background()
}
