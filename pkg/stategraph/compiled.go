package stategraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be shared by any number of
// concurrent runs. The graph structure cannot be modified after
// compilation.
//
// Use the introspection methods (NodeIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	schema      *Schema
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]conditionalEdge
	entryPoint  string

	// Pre-computed for efficient lookup
	successors    map[string][]string
	predecessors  map[string][]string
	isConditional map[string]bool
}

// Schema returns the state schema the graph executes over.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the possible next nodes from the given node: the
// plain edge target, or every distinct branch destination for a
// conditional edge. END is included when reachable directly.
func (cg *CompiledGraph) Successors(id string) []string {
	return cg.successors[id]
}

// Predecessors returns the node IDs with edges into the given node.
// Returns nil for the entry node or unknown nodes.
func (cg *CompiledGraph) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node routes via a conditional edge.
func (cg *CompiledGraph) IsConditional(id string) bool {
	return cg.isConditional[id]
}

// getNode returns the node function for the given ID.
// Used internally by the executor.
func (cg *CompiledGraph) getNode(id string) (NodeFunc, bool) {
	fn, exists := cg.nodes[id]
	return fn, exists
}

// getConditional returns the conditional edge for the given node.
// Used internally by the executor.
func (cg *CompiledGraph) getConditional(id string) (conditionalEdge, bool) {
	cond, exists := cg.conditional[id]
	return cond, exists
}

// getEdge returns the plain edge target for the given node.
// Used internally by the executor.
func (cg *CompiledGraph) getEdge(id string) (string, bool) {
	to, exists := cg.edges[id]
	return to, exists
}
