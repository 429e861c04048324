package funcindex

// defaultDepthBound caps the traversal behind MaxCallDepth.
const defaultDepthBound = 5

// FunctionMetrics reports fan-out (with and without duplicates), fan-in,
// and the maximum call depth discovered by the bounded traversal.
func (idx *Index) FunctionMetrics(function string) Metrics {
	idx.ensureScanned()

	callees := idx.callGraph[function]
	unique := make(map[string]bool, len(callees))
	for _, callee := range callees {
		unique[callee] = true
	}

	maxDepth := 0
	for _, depth := range idx.CallDepths(function, defaultDepthBound) {
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	return Metrics{
		CallsMade:     len(callees),
		UniqueCallees: len(unique),
		CalledBy:      len(idx.inbound[function]),
		MaxCallDepth:  maxDepth,
	}
}
