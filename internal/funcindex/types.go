// Package funcindex lexically indexes the source files of graph-resolved
// modules: function definitions and declarations, call sites, a forward
// callee graph with a reverse caller index, call-path tracing, and
// per-function complexity metrics. It is a heuristic scanner for the EDK2 C
// dialect, not a compiler front end.
package funcindex

import "fmt"

// UnscopedCaller marks call sites found outside any recognized function body.
const UnscopedCaller = "unscoped"

// FunctionLocation is one occurrence of a function: its definition or one of
// its forward declarations.
type FunctionLocation struct {
	Name              string `json:"name"`
	File              string `json:"file"`
	Line              int    `json:"line"`
	Module            string `json:"module"`
	Signature         string `json:"signature"`
	IsDefinition      bool   `json:"is_definition"`
	CallingConvention string `json:"calling_convention,omitempty"`
	ReturnType        string `json:"return_type"`
}

// Parameter is the best-effort decomposition of one parameter. Raw always
// holds the original text; the other fields are empty when the usual
// qualifier/type/name shape did not match.
type Parameter struct {
	Qualifier string `json:"qualifier,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Raw       string `json:"raw"`
}

// Definition carries the extra detail only a definition has: body extent,
// parsed parameters, modifiers, and the documentation block above it.
type Definition struct {
	FunctionLocation
	EndLine    int         `json:"end_line"`
	SigEndLine int         `json:"sig_end_line"`
	Parameters []Parameter `json:"parameters,omitempty"`
	IsStatic   bool        `json:"is_static,omitempty"`
	IsInline   bool        `json:"is_inline,omitempty"`
	Doc        string      `json:"doc,omitempty"`
}

// CallEdge is one call site: the enclosing function (or UnscopedCaller), the
// called name, and where it happened.
type CallEdge struct {
	Caller  string `json:"caller"`
	Callee  string `json:"callee"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context,omitempty"`
}

// CallPath is a one-hop trace record: caller, target, and the two-name chain
// with source evidence. Multi-hop chains are assembled by repeated queries
// or the depth-bounded traversal.
type CallPath struct {
	Caller string   `json:"caller"`
	Callee string   `json:"callee"`
	Chain  []string `json:"chain"`
	File   string   `json:"file"`
	Line   int      `json:"line"`
}

// Metrics summarizes a function's call-graph complexity.
type Metrics struct {
	CallsMade     int `json:"calls_made"`
	UniqueCallees int `json:"unique_callees"`
	CalledBy      int `json:"called_by"`
	MaxCallDepth  int `json:"max_call_depth"`
}

// FunctionNotFoundError reports a lookup that exhausted its scope.
type FunctionNotFoundError struct {
	Function string
	Scope    string
}

func (e *FunctionNotFoundError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("function %q not found in %s", e.Function, e.Scope)
	}
	return fmt.Sprintf("function %q not found", e.Function)
}
