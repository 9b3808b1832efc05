package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs over a
// state schema. Use NewGraph to create one, then chain AddNode,
// AddEdge, AddConditionalEdge, and SetEntry calls.
//
// Graph is NOT thread-safe during building. Construct it from a single
// goroutine, then call Compile() to get an immutable CompiledGraph
// that can be shared freely.
//
// Example:
//
//	schema := stategraph.NewSchema(
//	    stategraph.Field{Name: "document"},
//	    stategraph.Field{Name: "classification"},
//	)
//
//	graph := stategraph.NewGraph(schema).
//	    AddNode("classify", classify).
//	    AddNode("extract", extract).
//	    AddEdge(stategraph.START, "classify").
//	    AddEdge("classify", "extract").
//	    AddEdge("extract", stategraph.END)
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu          sync.RWMutex
	schema      *Schema
	nodes       map[string]NodeFunc
	edges       map[string][]string
	conditional map[string]conditionalEdge
	entryPoint  string
}

// conditionalEdge pairs a selector with its closed branch map.
type conditionalEdge struct {
	selector SelectorFunc
	branches map[string]string
}

// NewGraph creates a new graph builder over the given schema.
// Panics if schema is nil.
func NewGraph(schema *Schema) *Graph {
	if schema == nil {
		panic("stategraph: schema cannot be nil")
	}
	return &Graph{
		schema:      schema,
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string][]string),
		conditional: make(map[string]conditionalEdge),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty, a sentinel (START/END, case-insensitive), or
//     contains whitespace
//   - fn is nil
//   - id already exists in the graph
func (g *Graph) AddNode(id string, fn NodeFunc) *Graph {
	if id == "" {
		panic("stategraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END || idLower == "start" || idLower == START {
		panic("stategraph: node ID cannot be a reserved sentinel")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("stategraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("stategraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or END; the source can be START, which
// designates the entry node. Returns the graph for chaining.
//
// Reference validation happens at Compile() time, not here, so edges
// may be added in any order relative to their nodes.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == START {
		g.entryPoint = to
		return g
	}

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a conditional edge: at runtime the selector
// is invoked with the merged state and its returned branch key is
// looked up in branches to find the destination (a node ID or END).
// Returns the graph for chaining.
//
// The branch map is closed: a selector returning a key that is not in
// the map fails the run with a routing error. Destinations are
// validated at Compile() time.
//
// Panics if selector is nil or branches is empty.
func (g *Graph) AddConditionalEdge(from string, selector SelectorFunc, branches map[string]string) *Graph {
	if selector == nil {
		panic("stategraph: selector function cannot be nil")
	}
	if len(branches) == 0 {
		panic("stategraph: branch map cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make(map[string]string, len(branches))
	for key, dest := range branches {
		copied[key] = dest
	}

	g.conditional[from] = conditionalEdge{selector: selector, branches: copied}
	return g
}

// SetEntry designates the entry point node. Equivalent to
// AddEdge(START, id). Returns the graph for chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// Schema returns the state schema the graph was built over.
func (g *Graph) Schema() *Schema {
	return g.schema
}
