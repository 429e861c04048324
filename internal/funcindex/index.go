package funcindex

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edk2nav/edk2nav/internal/depgraph"
	"github.com/edk2nav/edk2nav/internal/descriptor"
)

var sourceExtensions = map[string]bool{
	".c": true, ".h": true, ".cpp": true, ".hpp": true,
}

// Index scans the source files of every graph-resolved module. The scan runs
// once, lazily, on the first query; per-name lookups are memoized for the
// lifetime of the index. The graph and build context are treated as
// read-only.
type Index struct {
	graph  *depgraph.Graph
	ctx    *descriptor.BuildContext
	logger *slog.Logger

	scanOnce  sync.Once
	scans     []*fileScan
	callGraph map[string][]string // caller -> callees, duplicates kept
	inbound   map[string][]CallEdge

	mu    sync.Mutex
	found map[string][]FunctionLocation
}

func New(graph *depgraph.Graph, ctx *descriptor.BuildContext, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Index{
		graph:  graph,
		ctx:    ctx,
		logger: logger,
		found:  make(map[string][]FunctionLocation),
	}
}

type scopedFile struct {
	Path   string
	Module string
}

// sourceFiles resolves every module source to an on-disk path, trying the
// module directory first and the workspace-relative layout second. Files
// absent from this checkout are dropped silently.
func (idx *Index) sourceFiles() []scopedFile {
	keys := make([]string, 0, len(idx.graph.Nodes))
	for key := range idx.graph.Nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	var files []scopedFile
	for _, key := range keys {
		module := idx.graph.Nodes[key]
		for _, source := range module.Sources {
			if !sourceExtensions[strings.ToLower(filepath.Ext(source))] {
				continue
			}
			path, ok := idx.resolveSource(module, source)
			if !ok || seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, scopedFile{Path: path, Module: module.Name})
		}
	}
	return files
}

func (idx *Index) resolveSource(module descriptor.ModuleDescriptor, source string) (string, bool) {
	rel := filepath.FromSlash(source)
	candidates := []string{
		filepath.Join(module.Dir(), rel),
		filepath.Join(idx.ctx.WorkspaceRoot, filepath.Dir(filepath.FromSlash(module.Path)), rel),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// ensureScanned runs the one-time parallel scan. Each file scan is
// independent; workers write into their own slot and the merge happens after
// the group completes, so order stays deterministic.
func (idx *Index) ensureScanned() {
	idx.scanOnce.Do(func() {
		files := idx.sourceFiles()
		results := make([]*fileScan, len(files))

		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, file := range files {
			i, file := i, file
			g.Go(func() error {
				scan, err := scanSource(file.Path, file.Module)
				if err != nil {
					idx.logger.Debug("source unreadable, skipping", "path", file.Path, "error", err)
					return nil
				}
				results[i] = scan
				return nil
			})
		}
		// Workers never return errors; unreadable files are skipped.
		_ = g.Wait()

		idx.scans = make([]*fileScan, 0, len(results))
		for _, scan := range results {
			if scan != nil {
				idx.scans = append(idx.scans, scan)
			}
		}

		idx.callGraph = make(map[string][]string)
		idx.inbound = make(map[string][]CallEdge)
		for _, scan := range idx.scans {
			for _, call := range scan.Calls {
				idx.callGraph[call.Caller] = append(idx.callGraph[call.Caller], call.Callee)
				idx.inbound[call.Callee] = append(idx.inbound[call.Callee], call)
			}
		}
	})
}

// FindFunction returns every definition and declaration of name across the
// graph-resolved source set, definitions first within each file.
func (idx *Index) FindFunction(name string) ([]FunctionLocation, error) {
	idx.ensureScanned()

	memoKey := name + "\x00" + idx.ctx.DescriptorPath
	idx.mu.Lock()
	cached, ok := idx.found[memoKey]
	idx.mu.Unlock()
	if ok {
		// Empty results are memoized too; misses stay misses.
		if len(cached) == 0 {
			return nil, &FunctionNotFoundError{Function: name, Scope: idx.scopeDescription()}
		}
		return cached, nil
	}

	var locations []FunctionLocation
	for _, scan := range idx.scans {
		for _, def := range scan.Definitions {
			if def.Name == name {
				locations = append(locations, def.FunctionLocation)
			}
		}
		for _, decl := range scan.Declarations {
			if decl.Name == name {
				locations = append(locations, decl)
			}
		}
	}

	idx.mu.Lock()
	idx.found[memoKey] = locations
	idx.mu.Unlock()

	if len(locations) == 0 {
		return nil, &FunctionNotFoundError{Function: name, Scope: idx.scopeDescription()}
	}
	return locations, nil
}

// Definitions returns the full definition records for name, body extents
// and parameters included.
func (idx *Index) Definitions(name string) []Definition {
	idx.ensureScanned()

	var defs []Definition
	for _, scan := range idx.scans {
		for _, def := range scan.Definitions {
			if def.Name == name {
				defs = append(defs, def)
			}
		}
	}
	return defs
}

func (idx *Index) scopeDescription() string {
	return fmt.Sprintf("%d modules included by %s", len(idx.graph.Nodes), idx.ctx.DescriptorPath)
}

// TextMatch is one keyword-search hit inside the scoped source set.
type TextMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Module  string `json:"module"`
	Snippet string `json:"snippet"`
}

// SearchText performs a case-insensitive substring scan over every scoped
// source file.
func (idx *Index) SearchText(query string) []TextMatch {
	needle := strings.ToLower(query)
	if needle == "" {
		return nil
	}

	var matches []TextMatch
	for _, file := range idx.sourceFiles() {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, TextMatch{
					File:    file.Path,
					Line:    i + 1,
					Module:  file.Module,
					Snippet: strings.TrimSpace(line),
				})
			}
		}
	}
	return matches
}
