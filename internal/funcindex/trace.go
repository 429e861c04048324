package funcindex

import "sort"

// TraceCalls finds every call site naming function outside its defining
// files and returns one-hop call-path records. It is breadth across modules,
// not a transitive trace; multi-hop chains come from repeated queries or
// CallDepths. An unknown function yields an empty result, not an error.
func (idx *Index) TraceCalls(function string) []CallPath {
	idx.ensureScanned()

	definingFiles := make(map[string]bool)
	for _, def := range idx.Definitions(function) {
		definingFiles[def.File] = true
	}
	if len(definingFiles) == 0 {
		return nil
	}

	type siteKey struct {
		caller string
		file   string
		line   int
	}
	seen := make(map[siteKey]bool)
	var paths []CallPath
	for _, edge := range idx.inbound[function] {
		if definingFiles[edge.File] {
			continue
		}
		key := siteKey{caller: edge.Caller, file: edge.File, line: edge.Line}
		if seen[key] {
			continue
		}
		seen[key] = true
		paths = append(paths, CallPath{
			Caller: edge.Caller,
			Callee: function,
			Chain:  []string{edge.Caller, function},
			File:   edge.File,
			Line:   edge.Line,
		})
	}
	return paths
}

// CallDepths walks the forward callee graph from function and reports the
// depth each reachable function was first seen at. maxDepth is a hard bound
// so cyclic call graphs terminate.
func (idx *Index) CallDepths(function string, maxDepth int) map[string]int {
	idx.ensureScanned()
	if maxDepth < 1 {
		maxDepth = 1
	}

	depths := map[string]int{function: 0}
	type frame struct {
		name  string
		depth int
	}
	stack := []frame{{name: function, depth: 0}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.depth >= maxDepth {
			continue
		}
		for _, callee := range idx.callGraph[top.name] {
			if _, seen := depths[callee]; seen {
				continue
			}
			depths[callee] = top.depth + 1
			stack = append(stack, frame{name: callee, depth: top.depth + 1})
		}
	}
	return depths
}

// RecursiveChains walks the callee graph from every function looking for a
// path that returns to its own starting point. Chains are reported once,
// bounded by maxDepth.
func (idx *Index) RecursiveChains(maxDepth int) [][]string {
	idx.ensureScanned()
	if maxDepth < 1 {
		maxDepth = 1
	}

	starts := make([]string, 0, len(idx.callGraph))
	for name := range idx.callGraph {
		starts = append(starts, name)
	}
	sort.Strings(starts)

	seenChains := make(map[string]bool)
	var chains [][]string
	for _, start := range starts {
		for _, chain := range idx.chainsBackTo(start, maxDepth) {
			key := chainKey(chain)
			if seenChains[key] {
				continue
			}
			seenChains[key] = true
			chains = append(chains, chain)
		}
	}
	return chains
}

// chainsBackTo does a bounded depth-first walk from start and records each
// path whose next hop would be start again.
func (idx *Index) chainsBackTo(start string, maxDepth int) [][]string {
	var found [][]string

	type frame struct {
		name string
		next int
	}
	stack := []frame{{name: start}}
	path := []string{start}
	onPath := map[string]bool{start: true}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		callees := idx.callGraph[top.name]

		if top.next >= len(callees) || len(path) > maxDepth {
			onPath[top.name] = false
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
			continue
		}

		callee := callees[top.next]
		top.next++

		if callee == start {
			found = append(found, append(append([]string(nil), path...), start))
			continue
		}
		if onPath[callee] {
			continue
		}
		onPath[callee] = true
		stack = append(stack, frame{name: callee})
		path = append(path, callee)
	}

	return found
}

func chainKey(chain []string) string {
	key := ""
	for _, name := range chain {
		key += name + "\x00"
	}
	return key
}
