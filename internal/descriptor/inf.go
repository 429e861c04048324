package descriptor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ParseINF parses one module descriptor file. env carries the active flags
// and platform defines so conditional blocks inside the INF are evaluated
// the same way DSC sections are.
func (p *Parser) ParseINF(path string, env map[string]string) (*ModuleDescriptor, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "resolving path", Err: err}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &ParseError{Path: absPath, Reason: "reading module descriptor", Err: err}
	}
	content := string(data)

	defines := parseDefines(content, env)
	stem := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))

	name := defines["BASE_NAME"]
	if name == "" {
		name = stem
	}
	moduleType := defines["MODULE_TYPE"]
	if moduleType == "" {
		moduleType = "UNKNOWN"
	}

	return &ModuleDescriptor{
		Path:           filepath.ToSlash(absPath),
		ResolvedPath:   absPath,
		Name:           name,
		Type:           moduleType,
		GUID:           NormalizeGUID(defines["FILE_GUID"]),
		Sources:        parseSources(content, env),
		LibraryClasses: parseRequiredClasses(content, env),
		Architectures:  parseArchitectures(defines, env),
	}, nil
}

// parseSources collects source entries, dropping per-toolchain qualifiers
// ("File.c | GCC") so only the relative path remains.
func parseSources(content string, env map[string]string) []string {
	lines, _ := ExtractSection(content, "Sources", env)
	sources := make([]string, 0, len(lines))
	for _, line := range lines {
		if before, _, ok := strings.Cut(line, "|"); ok {
			line = strings.TrimSpace(before)
		}
		if line == "" {
			continue
		}
		sources = append(sources, filepath.ToSlash(line))
	}
	return sources
}

// parseRequiredClasses returns the library-class names this module depends
// on. INF entries are bare names; anything after a pipe or whitespace is
// descriptor noise.
func parseRequiredClasses(content string, env map[string]string) []string {
	lines, _ := ExtractSection(content, "LibraryClasses", env)
	classes := make([]string, 0, len(lines))
	for _, line := range lines {
		if before, _, ok := strings.Cut(line, "|"); ok {
			line = strings.TrimSpace(before)
		}
		name := strings.Fields(line)
		if len(name) == 0 {
			continue
		}
		classes = append(classes, name[0])
	}
	return classes
}

func parseArchitectures(defines, env map[string]string) []string {
	if valid := defines["VALID_ARCHITECTURES"]; valid != "" {
		fields := strings.FieldsFunc(valid, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '|'
		})
		archs := make([]string, 0, len(fields))
		for _, field := range fields {
			if field != "" {
				archs = append(archs, field)
			}
		}
		if len(archs) > 0 {
			return archs
		}
	}
	if arch, ok := lookupEnv("ARCH", env); ok && arch != "" {
		return []string{arch}
	}
	return nil
}

// NormalizeGUID lowercases a parseable GUID into its canonical form.
// Unparseable values pass through raw; the descriptor vocabulary is open.
func NormalizeGUID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return raw
	}
	return parsed.String()
}
