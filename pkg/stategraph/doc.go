/*
Package stategraph provides graph-based workflow execution with typed
state, durable checkpoints, and human-in-the-loop interrupts.

# Overview

stategraph is a Go library for building and executing directed graphs
where nodes transform a shared state and edges define flow. Runs
checkpoint after every step, pause at declared interrupt points, and
resume exactly where they left off, across process restarts.

Key properties:
  - Declared state schema with per-field merge reducers
  - Compile-time validation of graph structure
  - Durable checkpoint per step (memory, SQLite, MySQL, Redis)
  - Pause/resume with human review edits between
  - slog logging, OpenTelemetry and Prometheus metrics, tracing

# Basic Usage

Declare a schema, build a graph, compile it, and run it through an
executor:

	schema := stategraph.NewSchema(
	    stategraph.Field{Name: "input"},
	    stategraph.Field{Name: "output"},
	)

	func process(ctx stategraph.Context, s stategraph.State) (stategraph.State, error) {
	    in, _ := s["input"].(string)
	    return stategraph.State{"output": "Processed: " + in}, nil
	}

	func main() {
	    graph := stategraph.NewGraph(schema).
	        AddNode("process", process).
	        AddEdge(stategraph.START, "process").
	        AddEdge("process", stategraph.END)

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    store := checkpoint.NewMemoryStore()
	    exec := stategraph.NewExecutor(compiled, store)

	    result, err := exec.Invoke(context.Background(), "thread-1",
	        stategraph.State{"input": "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.State["output"]) // "Processed: hello"
	}

Nodes return sparse partial updates; the engine merges them into the
full state using each field's reducer (default: replace). Use
stategraph.Append or stategraph.Union for accumulating fields.

# Conditional Branching

Conditional edges pick the next node from a closed branch map:

	graph.AddConditionalEdge("classify",
	    func(ctx stategraph.Context, s stategraph.State) string {
	        if s["classification"] == "unknown" {
	            return "reject"
	        }
	        return "accept"
	    },
	    map[string]string{
	        "accept": "extract",
	        "reject": stategraph.END,
	    })

The selector returns a branch key, not a node ID. A key absent from
the map fails the run with a RoutingError; the engine never guesses.

# Loops

Branches may point back to earlier nodes. Loops are bounded by the
executor's step limit (default 1000, see WithMaxSteps); exceeding it
fails the run with ErrMaxSteps.

# Checkpointing and Resume

Every step writes a checkpoint keyed by (thread_id, step). The full
history is kept, so a thread can be inspected or continued at any
point:

	store, _ := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	exec := stategraph.NewExecutor(compiled, store)
	result, err := exec.Invoke(ctx, "thread-1", initial)

	// After a crash, Invoke on the same thread continues from the
	// last durable step.
	result, err = exec.Invoke(ctx, "thread-1", nil)

# Interrupts

Declare pause points for human review:

	exec := stategraph.NewExecutor(compiled, store,
	    stategraph.WithInterruptBefore("finalize"))

	result, _ := exec.Invoke(ctx, "thread-1", initial)
	// result.Status == PAUSED, result.PendingNode == "finalize"

	// Optionally edit the checkpointed state, then resume.
	exec.UpdateState(ctx, "thread-1", stategraph.State{"approved": true})
	result, _ = exec.Resume(ctx, "thread-1", nil)

Resume consumes the interrupt: the pending node executes immediately
instead of pausing again.

# Error Handling

Errors carry the failing node and unwrap to sentinels:

	result, err := exec.Invoke(ctx, threadID, initial)
	var nodeErr *stategraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}
	if errors.Is(err, stategraph.ErrMaxSteps) {
	    // graph looped past the step limit
	}

Panics in nodes are recovered and converted to PanicError with a stack
trace. A failed thread keeps its full checkpoint history but rejects
further Invoke/Resume calls with InvalidStateError.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use (immutable)
  - Executor IS safe for concurrent use; operations on the same
    thread ID are serialized
  - Store implementations are safe for concurrent use

# Subpackages

  - checkpoint: checkpoint storage (memory, SQLite, MySQL, Redis)
  - observability: logging, metrics, and tracing helpers
  - config: YAML/JSON configuration loading
*/
package stategraph
