package descriptor

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration applied when the caller does not set a flag.
// TOOLCHAIN intentionally has no default; it stays whatever the caller set.
const (
	DefaultTarget = "DEBUG"
	DefaultArch   = "X64"
)

// Parser turns a platform descriptor (DSC) and the module descriptors (INF)
// it references into a BuildContext. Paths referenced by the descriptor are
// resolved against, in order: the workspace root, the platform repository
// directory, the descriptor's own directory.
type Parser struct {
	WorkspaceRoot string
	PlatformDir   string
	Logger        *slog.Logger
}

func NewParser(workspaceRoot, platformDir string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{
		WorkspaceRoot: workspaceRoot,
		PlatformDir:   platformDir,
		Logger:        logger,
	}
}

// ParseDSC parses the platform descriptor at path under the given flags.
// Missing or unreadable descriptors, and descriptors without a components
// section, fail with *ParseError. Unresolvable component entries are skipped:
// firmware trees routinely reference arch- or feature-gated modules that are
// not present in every checkout.
func (p *Parser) ParseDSC(path string, flags map[string]string) (*BuildContext, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "resolving path", Err: err}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &ParseError{Path: absPath, Reason: "reading descriptor", Err: err}
	}
	content := string(data)

	resolved := ResolveFlags(flags)

	// Defines can only be gated by caller flags; every later section sees
	// flags plus the defines extracted here.
	defines := parseDefines(content, resolved)
	env := mergeEnv(resolved, defines)

	mappings := parseLibraryClasses(content, env)

	componentLines, found := ExtractSection(content, "Components", env)
	if !found {
		return nil, &ParseError{Path: absPath, Reason: "no components section"}
	}
	modules := p.parseComponents(componentLines, filepath.Dir(absPath), env)

	return &BuildContext{
		DescriptorPath:  absPath,
		WorkspaceRoot:   p.WorkspaceRoot,
		Flags:           resolved,
		Modules:         modules,
		LibraryMappings: mappings,
		Defines:         defines,
		ParsedAt:        time.Now(),
	}, nil
}

// ResolveFlags copies the caller's flags and fills in the TARGET and ARCH
// defaults. Two flag sets that resolve identically describe the same build.
func ResolveFlags(flags map[string]string) map[string]string {
	resolved := make(map[string]string, len(flags)+2)
	for key, value := range flags {
		resolved[key] = value
	}
	if resolved["TARGET"] == "" {
		resolved["TARGET"] = DefaultTarget
	}
	if resolved["ARCH"] == "" {
		resolved["ARCH"] = DefaultArch
	}
	return resolved
}

func mergeEnv(flags, defines map[string]string) map[string]string {
	env := make(map[string]string, len(flags)+len(defines))
	for key, value := range defines {
		env[key] = value
	}
	for key, value := range flags {
		env[key] = value
	}
	return env
}

// parseDefines handles both "KEY = VALUE" and "DEFINE KEY = VALUE" forms.
func parseDefines(content string, env map[string]string) map[string]string {
	defines := make(map[string]string)
	lines, _ := ExtractSection(content, "Defines", env)
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, "DEFINE "); ok {
			line = strings.TrimSpace(rest)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		defines[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return defines
}

// parseLibraryClasses extracts Name|ImplementationPath bindings. Later
// bindings for the same class overwrite earlier ones: the descriptor's
// override model is last-write-wins.
func parseLibraryClasses(content string, env map[string]string) map[string]string {
	mappings := make(map[string]string)
	lines, _ := ExtractSection(content, "LibraryClasses", env)
	for _, line := range lines {
		name, impl, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		impl = strings.TrimSpace(impl)
		if name == "" || impl == "" {
			continue
		}
		mappings[name] = impl
	}
	return mappings
}

func (p *Parser) parseComponents(lines []string, dscDir string, env map[string]string) []ModuleDescriptor {
	modules := make([]ModuleDescriptor, 0, len(lines))
	seen := make(map[string]bool)

	for _, line := range lines {
		modulePath, ok := ExtractModulePath(line)
		if !ok {
			continue
		}

		key := NormalizePath(modulePath)
		if seen[key] {
			continue
		}

		infPath, ok := p.resolveModulePath(modulePath, dscDir)
		if !ok {
			p.Logger.Debug("component path unresolvable, skipping", "module", modulePath)
			continue
		}

		module, err := p.ParseINF(infPath, env)
		if err != nil {
			p.Logger.Debug("module descriptor unreadable, skipping", "path", infPath, "error", err)
			continue
		}
		module.Path = filepath.ToSlash(modulePath)

		seen[key] = true
		modules = append(modules, *module)
	}

	return modules
}

// ExtractModulePath pulls the INF path out of one components-section line.
// It strips build-option blocks ("{ ... }" suffixes), skips scoping lines
// (<LibraryClasses>, lone braces), and unwraps "Class|Path.inf" overrides.
func ExtractModulePath(line string) (string, bool) {
	if idx := strings.Index(line, "{"); idx != -1 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	if line == "" || line == "}" || strings.HasPrefix(line, "<") || strings.HasPrefix(line, "!") {
		return "", false
	}

	if _, after, ok := strings.Cut(line, "|"); ok {
		line = strings.TrimSpace(after)
	}

	if !strings.HasSuffix(strings.ToLower(line), ".inf") {
		return "", false
	}
	return line, true
}

func (p *Parser) resolveModulePath(modulePath, dscDir string) (string, bool) {
	rel := filepath.FromSlash(modulePath)
	for _, root := range []string{p.WorkspaceRoot, p.PlatformDir, dscDir} {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
