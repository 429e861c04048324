// Package depgraph builds the module dependency graph for one parsed build
// context: library-class requirements resolved to the concrete modules the
// platform bound them to, an include-file adjacency as a secondary relation,
// and cycle diagnostics.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edk2nav/edk2nav/internal/descriptor"
)

// Graph is a directed module graph. Nodes are keyed by normalized module
// path. Edge targets are either another node's key (library class resolved)
// or the bare library-class name when resolution failed; unresolved names
// are diagnostics, never graph nodes.
type Graph struct {
	Nodes map[string]descriptor.ModuleDescriptor `json:"nodes"`
	Edges map[string][]string                    `json:"edges"`
	// IncludeEdges maps a module to the modules reachable via #include in
	// its sources. Attribution matches on the first path segment only; it
	// is a best-effort heuristic, not a build-include-path simulation.
	IncludeEdges    map[string][]string `json:"include_edges"`
	LibraryMappings map[string]string   `json:"library_mappings"`
	// Cycles lists the module keys of each dependency cycle found after
	// construction. A cycle is a diagnostic; the edges stay in place.
	Cycles [][]string `json:"cycles,omitempty"`
}

// ModuleNotFoundError reports a dependency query for a module absent from
// the graph.
type ModuleNotFoundError struct {
	Module string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %q not found in dependency graph", e.Module)
}

// GraphError reports an internal invariant violation. It indicates a
// programming error, not bad input: construction never produces one.
type GraphError struct {
	Detail string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("dependency graph invariant violated: %s", e.Detail)
}

// Build constructs the graph for a build context. It never fails: unresolved
// library classes stay as literal edge targets and cycles are recorded, not
// rejected. File I/O is limited to the include scan.
func Build(ctx *descriptor.BuildContext) *Graph {
	g := &Graph{
		Nodes:           make(map[string]descriptor.ModuleDescriptor, len(ctx.Modules)),
		Edges:           make(map[string][]string, len(ctx.Modules)),
		IncludeEdges:    make(map[string][]string, len(ctx.Modules)),
		LibraryMappings: make(map[string]string, len(ctx.LibraryMappings)),
	}
	for name, impl := range ctx.LibraryMappings {
		g.LibraryMappings[name] = impl
	}

	for _, module := range ctx.Modules {
		key := descriptor.NormalizePath(module.Path)
		g.Nodes[key] = module
		g.Edges[key] = nil
	}

	for _, module := range ctx.Modules {
		key := descriptor.NormalizePath(module.Path)
		targets := make([]string, 0, len(module.LibraryClasses))
		for _, class := range module.LibraryClasses {
			targets = append(targets, g.resolveClass(class))
		}
		g.Edges[key] = targets
	}

	g.buildIncludeEdges()
	g.Cycles = g.detectCycles()

	return g
}

// resolveClass maps a library-class name to the node key of its bound
// implementation: exact normalized path first, then basename with the .inf
// extension stripped. A miss returns the class name itself.
func (g *Graph) resolveClass(class string) string {
	impl, ok := g.LibraryMappings[class]
	if !ok {
		return class
	}

	wanted := descriptor.NormalizePath(impl)
	if _, ok := g.Nodes[wanted]; ok {
		return wanted
	}

	wantedBase := strings.TrimSuffix(pathBase(wanted), ".inf")
	for _, key := range g.sortedNodeKeys() {
		if strings.TrimSuffix(pathBase(key), ".inf") == wantedBase {
			return key
		}
	}
	return class
}

func (g *Graph) sortedNodeKeys() []string {
	keys := make([]string, 0, len(g.Nodes))
	for key := range g.Nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func pathBase(path string) string {
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		return path[idx+1:]
	}
	return path
}

// Dependencies returns the edge targets of a module, in declaration order
// with duplicates removed. With transitive set, the closure is walked
// iteratively in first-seen order; only resolved targets are expanded.
func (g *Graph) Dependencies(module string, transitive bool) ([]string, error) {
	key := descriptor.NormalizePath(module)
	if _, ok := g.Nodes[key]; !ok {
		return nil, &ModuleNotFoundError{Module: module}
	}

	if !transitive {
		return dedupe(g.Edges[key]), nil
	}

	var out []string
	seen := make(map[string]bool)
	visited := map[string]bool{key: true}
	queue := append([]string(nil), g.Edges[key]...)

	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]

		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
		if _, isNode := g.Nodes[target]; !isNode || visited[target] {
			continue
		}
		visited[target] = true
		queue = append(queue, g.Edges[target]...)
	}

	return out, nil
}

// Dependents returns the modules whose edges point at the given module,
// in sorted key order.
func (g *Graph) Dependents(module string) []string {
	key := descriptor.NormalizePath(module)
	var out []string
	for _, candidate := range g.sortedNodeKeys() {
		if candidate == key {
			continue
		}
		for _, target := range g.Edges[candidate] {
			if target == key {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// Validate checks the construction invariant that every edge key is a node.
func (g *Graph) Validate() error {
	for key := range g.Edges {
		if _, ok := g.Nodes[key]; !ok {
			return &GraphError{Detail: fmt.Sprintf("edges keyed by unknown module %q", key)}
		}
	}
	return nil
}

// detectCycles runs an iterative depth-first search over resolved edges
// only; unresolved class names cannot form a module cycle. Each back edge
// into the active stack yields one recorded cycle.
func (g *Graph) detectCycles() [][]string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(g.Nodes))
	var cycles [][]string

	type frame struct {
		node string
		next int
	}

	for _, start := range g.sortedNodeKeys() {
		if state[start] != unvisited {
			continue
		}

		stack := []frame{{node: start}}
		path := []string{start}
		state[start] = inStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.resolvedEdges(top.node)

			if top.next < len(edges) {
				target := edges[top.next]
				top.next++

				switch state[target] {
				case unvisited:
					state[target] = inStack
					stack = append(stack, frame{node: target})
					path = append(path, target)
				case inStack:
					cycles = append(cycles, cycleFrom(path, target))
				}
				continue
			}

			state[top.node] = done
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}

	return cycles
}

func (g *Graph) resolvedEdges(node string) []string {
	var out []string
	for _, target := range g.Edges[node] {
		if _, ok := g.Nodes[target]; ok {
			out = append(out, target)
		}
	}
	return out
}

func cycleFrom(path []string, target string) []string {
	for i, node := range path {
		if node == target {
			return append([]string(nil), path[i:]...)
		}
	}
	return []string{target}
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
