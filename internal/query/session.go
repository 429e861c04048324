// Package query is the façade the CLI talks to: it opens a platform under a
// build configuration, consults the cache, builds the dependency graph, and
// answers module and function questions. One Session is one platform under
// one configuration.
package query

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/edk2nav/edk2nav/internal/cache"
	"github.com/edk2nav/edk2nav/internal/depgraph"
	"github.com/edk2nav/edk2nav/internal/descriptor"
	"github.com/edk2nav/edk2nav/internal/funcindex"
)

// Options configures how a Session is opened. Zero values mean: no workspace
// or platform roots, caching disabled, discard logging.
type Options struct {
	WorkspaceRoot string
	PlatformDir   string
	CacheDir      string
	CacheTTL      time.Duration
	DisableCache  bool
	Logger        *slog.Logger
}

// Session holds the parsed build context and its dependency graph. The
// function index is built lazily on the first function query.
type Session struct {
	Context *descriptor.BuildContext
	Graph   *depgraph.Graph
	// FromCache reports whether the context was served from the cache
	// rather than parsed fresh.
	FromCache bool

	logger *slog.Logger

	indexOnce sync.Once
	index     *funcindex.Index
}

// Open parses (or loads from cache) the platform descriptor at dscPath under
// flags and builds the dependency graph. Cache write failures are logged and
// otherwise ignored; a broken cache must not block a query.
func Open(dscPath string, flags map[string]string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var store *cache.Store
	if !opts.DisableCache && opts.CacheDir != "" {
		store = cache.New(opts.CacheDir, opts.CacheTTL, logger)
	}
	resolved := descriptor.ResolveFlags(flags)

	session := &Session{logger: logger}

	if store != nil {
		var ctx descriptor.BuildContext
		if store.Load(dscPath, resolved, &ctx) {
			logger.Debug("build context served from cache", "descriptor", dscPath)
			session.Context = &ctx
			session.FromCache = true
		}
	}

	if session.Context == nil {
		parser := descriptor.NewParser(opts.WorkspaceRoot, opts.PlatformDir, logger)
		ctx, err := parser.ParseDSC(dscPath, flags)
		if err != nil {
			return nil, err
		}
		session.Context = ctx
		if store != nil {
			if err := store.Save(dscPath, resolved, ctx); err != nil {
				logger.Warn("cache write failed", "descriptor", dscPath, "error", err)
			}
		}
	}

	session.Graph = depgraph.Build(session.Context)
	return session, nil
}

// Modules returns the platform's modules sorted by path. A non-empty
// typeFilter keeps only modules of that declared type, compared
// case-insensitively.
func (s *Session) Modules(typeFilter string) []descriptor.ModuleDescriptor {
	out := make([]descriptor.ModuleDescriptor, 0, len(s.Context.Modules))
	for _, module := range s.Context.Modules {
		if typeFilter != "" && !strings.EqualFold(module.Type, typeFilter) {
			continue
		}
		out = append(out, module)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// DependencyReport answers one deps query: direct and transitive
// dependencies plus the reverse direction.
type DependencyReport struct {
	Module     string   `json:"module"`
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
	Dependents []string `json:"dependents"`
}

// ModuleDependencies resolves name to a module and reports its dependency
// neighborhood. Name may be a descriptor path or a module BASE_NAME.
func (s *Session) ModuleDependencies(name string) (*DependencyReport, error) {
	key, err := s.resolveModule(name)
	if err != nil {
		return nil, err
	}

	direct, err := s.Graph.Dependencies(key, false)
	if err != nil {
		return nil, err
	}
	transitive, err := s.Graph.Dependencies(key, true)
	if err != nil {
		return nil, err
	}

	return &DependencyReport{
		Module:     key,
		Direct:     direct,
		Transitive: transitive,
		Dependents: s.Graph.Dependents(key),
	}, nil
}

// resolveModule maps a user-supplied name to a graph node key: exact
// normalized path first, then a case-insensitive BASE_NAME match.
func (s *Session) resolveModule(name string) (string, error) {
	key := descriptor.NormalizePath(name)
	if _, ok := s.Graph.Nodes[key]; ok {
		return key, nil
	}

	var matches []string
	for nodeKey, module := range s.Graph.Nodes {
		if strings.EqualFold(module.Name, name) {
			matches = append(matches, nodeKey)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", &depgraph.ModuleNotFoundError{Module: name}
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("module name %q is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// Index returns the lazily built function index.
func (s *Session) Index() *funcindex.Index {
	s.indexOnce.Do(func() {
		s.index = funcindex.New(s.Graph, s.Context, s.logger)
	})
	return s.index
}

// FindFunction locates every definition and declaration of name across the
// platform's sources.
func (s *Session) FindFunction(name string) ([]funcindex.FunctionLocation, error) {
	return s.Index().FindFunction(name)
}

// TraceCalls returns the cross-file call paths into function. A function
// with no definition anywhere in scope is an error, not an empty trace.
func (s *Session) TraceCalls(function string) ([]funcindex.CallPath, error) {
	idx := s.Index()
	if len(idx.Definitions(function)) == 0 {
		if _, err := idx.FindFunction(function); err != nil {
			return nil, err
		}
		// Declared but never defined in this checkout: nothing to trace to.
		return nil, nil
	}
	return idx.TraceCalls(function), nil
}

// FunctionMetrics summarizes the call-graph shape around function.
func (s *Session) FunctionMetrics(function string) (funcindex.Metrics, error) {
	idx := s.Index()
	if _, err := idx.FindFunction(function); err != nil {
		return funcindex.Metrics{}, err
	}
	return idx.FunctionMetrics(function), nil
}

// RecursiveChains reports call chains that return to their starting
// function, bounded by maxDepth hops.
func (s *Session) RecursiveChains(maxDepth int) [][]string {
	return s.Index().RecursiveChains(maxDepth)
}

// SearchText scans every in-scope source file for a case-insensitive
// substring match.
func (s *Session) SearchText(text string) []funcindex.TextMatch {
	return s.Index().SearchText(text)
}
