package stategraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined.
//
// Validation checks:
//  1. Entry point must be set
//  2. Entry point must reference an existing node
//  3. All edge and conditional-edge sources must reference existing nodes
//  4. All edge targets and branch destinations must reference existing
//     nodes or END
//  5. No node may have more than one routing rule (several plain edges,
//     or a plain edge alongside a conditional edge)
//  6. Every node reachable from the entry must have outgoing routing
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not fail compilation.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	// Edge references.
	for from, targets := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		for _, to := range targets {
			if to == END {
				continue
			}
			if _, exists := g.nodes[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
			}
		}
	}

	// Conditional edge references, including every branch destination.
	for from, cond := range g.conditional {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q does not exist", ErrNodeNotFound, from))
		}
		for key, dest := range cond.branches {
			if dest == END {
				continue
			}
			if _, exists := g.nodes[dest]; !exists {
				errs = append(errs, fmt.Errorf("%w: branch %q destination %q does not exist", ErrNodeNotFound, key, dest))
			}
		}
	}

	// Exactly one routing rule per node.
	for from, targets := range g.edges {
		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: node %q has %d plain edges", ErrAmbiguousFanOut, from, len(targets)))
		}
		if _, hasConditional := g.conditional[from]; hasConditional {
			errs = append(errs, fmt.Errorf("%w: node %q has both a plain edge and a conditional edge", ErrAmbiguousFanOut, from))
		}
	}

	// Reachable nodes must route somewhere.
	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists {
			reachable := g.findReachableNodes()
			ids := make([]string, 0, len(reachable))
			for id := range reachable {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if len(g.edges[id]) > 0 {
					continue
				}
				if _, hasConditional := g.conditional[id]; hasConditional {
					continue
				}
				errs = append(errs, fmt.Errorf("%w: %s", ErrDeadEnd, id))
			}
			g.warnUnreachableNodes(reachable)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// findReachableNodes returns the set of nodes reachable from the entry
// point. Branch maps are closed, so conditional edges contribute
// exactly their declared destinations.
func (g *Graph) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.edges[current] {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}

		if cond, ok := g.conditional[current]; ok {
			for _, dest := range cond.branches {
				if dest != END && !reachable[dest] {
					reachable[dest] = true
					queue = append(queue, dest)
				}
			}
		}
	}

	return reachable
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph) warnUnreachableNodes(reachable map[string]bool) {
	for nodeID := range g.nodes {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// buildCompiledGraph creates the immutable CompiledGraph from the
// builder state. Only called after validation, so each node has at
// most one plain edge.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	nodes := make(map[string]NodeFunc, len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = targets[0]
	}

	conditional := make(map[string]conditionalEdge, len(g.conditional))
	for from, cond := range g.conditional {
		branches := make(map[string]string, len(cond.branches))
		for key, dest := range cond.branches {
			branches[key] = dest
		}
		conditional[from] = conditionalEdge{selector: cond.selector, branches: branches}
	}

	// Pre-compute successors and predecessors for introspection.
	successors := make(map[string][]string)
	predecessors := make(map[string][]string)
	addEdge := func(from, to string) {
		successors[from] = append(successors[from], to)
		if to != END {
			predecessors[to] = append(predecessors[to], from)
		}
	}
	for from, to := range edges {
		addEdge(from, to)
	}
	for from, cond := range conditional {
		dests := make([]string, 0, len(cond.branches))
		for _, dest := range cond.branches {
			dests = append(dests, dest)
		}
		sort.Strings(dests)
		seen := ""
		for _, dest := range dests {
			if dest == seen {
				continue
			}
			seen = dest
			addEdge(from, dest)
		}
	}
	for _, preds := range predecessors {
		sort.Strings(preds)
	}

	isConditional := make(map[string]bool, len(conditional))
	for from := range conditional {
		isConditional[from] = true
	}

	return &CompiledGraph{
		schema:        g.schema,
		nodes:         nodes,
		edges:         edges,
		conditional:   conditional,
		entryPoint:    g.entryPoint,
		successors:    successors,
		predecessors:  predecessors,
		isConditional: isConditional,
	}
}
