package depgraph

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/edk2nav/edk2nav/internal/descriptor"
)

func buildContext(modules []descriptor.ModuleDescriptor, mappings map[string]string) *descriptor.BuildContext {
	return &descriptor.BuildContext{
		DescriptorPath:  "/ws/Platform.dsc",
		WorkspaceRoot:   "/ws",
		Flags:           map[string]string{"TARGET": "DEBUG", "ARCH": "X64"},
		Modules:         modules,
		LibraryMappings: mappings,
	}
}

func TestBuildResolvesLibraryClasses(t *testing.T) {
	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "AppPkg/App/App.inf", Name: "App", LibraryClasses: []string{"BaseLib", "DebugLib", "GhostLib"}},
			{Path: "MdePkg/Library/BaseLib/BaseLib.inf", Name: "BaseLib"},
			{Path: "MdePkg/Library/UartDebugLib/UartDebugLib.inf", Name: "UartDebugLib"},
		},
		map[string]string{
			// Exact path match.
			"BaseLib": "MdePkg/Library/BaseLib/BaseLib.inf",
			// Basename match: bound path differs, file name agrees.
			"DebugLib": "SomeOtherPkg/Library/UartDebugLib.inf",
			// GhostLib has no binding at all.
		},
	)

	g := Build(ctx)
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}

	edges := g.Edges["apppkg/app/app.inf"]
	want := []string{
		"mdepkg/library/baselib/baselib.inf",
		"mdepkg/library/uartdebuglib/uartdebuglib.inf",
		"GhostLib",
	}
	if !reflect.DeepEqual(edges, want) {
		t.Fatalf("expected edges %v, got %v", want, edges)
	}

	// Unresolved class names are edge targets, never nodes.
	if _, ok := g.Nodes["GhostLib"]; ok {
		t.Fatalf("unresolved class must not become a node")
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "A/A.inf", LibraryClasses: []string{"Lib"}},
			{Path: "B/B.inf"},
		},
		map[string]string{"Lib": "B/B.inf"},
	)

	first := Build(ctx)
	second := Build(ctx)
	if !reflect.DeepEqual(first.Nodes, second.Nodes) || !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Fatalf("identical inputs must produce identical graphs")
	}
}

func cyclicContext() *descriptor.BuildContext {
	return buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "A/A.inf", LibraryClasses: []string{"BLib"}},
			{Path: "B/B.inf", LibraryClasses: []string{"CLib"}},
			{Path: "C/C.inf", LibraryClasses: []string{"ALib"}},
		},
		map[string]string{
			"ALib": "A/A.inf",
			"BLib": "B/B.inf",
			"CLib": "C/C.inf",
		},
	)
}

func TestCycleDetection(t *testing.T) {
	g := Build(cyclicContext())
	if len(g.Cycles) == 0 {
		t.Fatalf("expected at least one cycle")
	}

	members := make(map[string]bool)
	for _, node := range g.Cycles[0] {
		members[node] = true
	}
	for _, key := range []string{"a/a.inf", "b/b.inf", "c/c.inf"} {
		if !members[key] {
			t.Fatalf("cycle %v missing member %s", g.Cycles[0], key)
		}
	}

	// Cycles are diagnostics: edges stay in place.
	if len(g.Edges["a/a.inf"]) != 1 {
		t.Fatalf("cycle detection must not remove edges")
	}
}

func TestCycleDetectionAcyclic(t *testing.T) {
	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "A/A.inf", LibraryClasses: []string{"BLib"}},
			{Path: "B/B.inf"},
		},
		map[string]string{"BLib": "B/B.inf"},
	)
	g := Build(ctx)
	if len(g.Cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", g.Cycles)
	}
}

func TestDependenciesTransitiveFirstSeenOrder(t *testing.T) {
	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "App/App.inf", LibraryClasses: []string{"MidLib", "LeafLib"}},
			{Path: "Mid/Mid.inf", LibraryClasses: []string{"LeafLib", "LooseLib"}},
			{Path: "Leaf/Leaf.inf"},
		},
		map[string]string{
			"MidLib":  "Mid/Mid.inf",
			"LeafLib": "Leaf/Leaf.inf",
		},
	)
	g := Build(ctx)

	direct, err := g.Dependencies("App/App.inf", false)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if !reflect.DeepEqual(direct, []string{"mid/mid.inf", "leaf/leaf.inf"}) {
		t.Fatalf("unexpected direct deps: %v", direct)
	}

	transitive, err := g.Dependencies("App/App.inf", true)
	if err != nil {
		t.Fatalf("Dependencies transitive: %v", err)
	}
	want := []string{"mid/mid.inf", "leaf/leaf.inf", "LooseLib"}
	if !reflect.DeepEqual(transitive, want) {
		t.Fatalf("expected first-seen order %v, got %v", want, transitive)
	}
}

func TestDependenciesTerminatesOnCycles(t *testing.T) {
	g := Build(cyclicContext())
	deps, err := g.Dependencies("A/A.inf", true)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	want := []string{"b/b.inf", "c/c.inf", "a/a.inf"}
	if !reflect.DeepEqual(deps, want) {
		t.Fatalf("expected cycle-safe closure %v, got %v", want, deps)
	}
}

func TestDependenciesUnknownModule(t *testing.T) {
	g := Build(buildContext(nil, nil))
	var notFound *ModuleNotFoundError
	if _, err := g.Dependencies("Nope/Nope.inf", false); !errors.As(err, &notFound) {
		t.Fatalf("expected ModuleNotFoundError, got %v", err)
	}
}

func TestDependents(t *testing.T) {
	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{Path: "A/A.inf", LibraryClasses: []string{"Lib"}},
			{Path: "B/B.inf", LibraryClasses: []string{"Lib"}},
			{Path: "Lib/Lib.inf"},
		},
		map[string]string{"Lib": "Lib/Lib.inf"},
	)
	g := Build(ctx)

	dependents := g.Dependents("Lib/Lib.inf")
	if !reflect.DeepEqual(dependents, []string{"a/a.inf", "b/b.inf"}) {
		t.Fatalf("unexpected dependents: %v", dependents)
	}
}

func TestIncludeEdgesFirstSegmentHeuristic(t *testing.T) {
	root := t.TempDir()
	writeSource := func(rel, content string) string {
		t.Helper()
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	writeSource("AppPkg/App/Main.c", "#include \"LibPkg/Helper.h\"\n#include <stdint.h>\n")
	writeSource("LibPkg/Lib/Lib.c", "int helper(void) { return 0; }\n")

	ctx := buildContext(
		[]descriptor.ModuleDescriptor{
			{
				Path:         "AppPkg/App/App.inf",
				ResolvedPath: filepath.Join(root, "AppPkg", "App", "App.inf"),
				Sources:      []string{"Main.c"},
			},
			{
				Path:         "LibPkg/Lib/Lib.inf",
				ResolvedPath: filepath.Join(root, "LibPkg", "Lib", "Lib.inf"),
				Sources:      []string{"Lib.c"},
			},
		},
		nil,
	)

	g := Build(ctx)
	includes := g.IncludeEdges["apppkg/app/app.inf"]
	if !reflect.DeepEqual(includes, []string{"libpkg/lib/lib.inf"}) {
		t.Fatalf("expected include edge to LibPkg module, got %v", includes)
	}
	if len(g.IncludeEdges["libpkg/lib/lib.inf"]) != 0 {
		t.Fatalf("LibPkg module has no includes, got %v", g.IncludeEdges["libpkg/lib/lib.inf"])
	}
}
