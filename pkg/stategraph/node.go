package stategraph

// START is the virtual entry sentinel. An edge from START designates
// the node execution begins at; it is equivalent to SetEntry.
const START = "__start__"

// END is the terminal sentinel. Use it as an edge target or branch
// destination to indicate the run should complete.
const END = "__end__"

// NodeFunc is the signature for all node capabilities.
//
// A node receives the execution context and the full current state and
// returns a partial update: a sparse State holding only the fields it
// changed. Returning nil (or an empty State) means "no change". The
// engine merges the update via the schema's reducers; nodes must not
// mutate the state they were given.
//
// Example:
//
//	func classify(ctx stategraph.Context, s stategraph.State) (stategraph.State, error) {
//	    doc, _ := s["document"].(string)
//	    if strings.Contains(strings.ToLower(doc), "loan") {
//	        return stategraph.State{"classification": "loan_disclosure"}, nil
//	    }
//	    return stategraph.State{"classification": "unknown"}, nil
//	}
type NodeFunc func(ctx Context, state State) (State, error)

// SelectorFunc picks the branch key for a conditional edge.
//
// The engine looks the returned key up in the branch map declared with
// AddConditionalEdge. A key absent from the map is a terminal routing
// failure. Selectors must be pure functions of state.
//
// Example:
//
//	func route(ctx stategraph.Context, s stategraph.State) string {
//	    if s["classification"] == "unknown" {
//	        return "handle_unknown"
//	    }
//	    return "extract"
//	}
type SelectorFunc func(ctx Context, state State) string
