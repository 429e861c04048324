package descriptor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ModuleDescriptor holds the metadata declared by one INF file. It is
// immutable after parsing; the BuildContext that produced it owns it.
type ModuleDescriptor struct {
	// Path is the module path as written in the platform descriptor,
	// slash-normalized. It is the module's unique key (compared
	// case-insensitively via NormalizePath).
	Path string `json:"path"`
	// ResolvedPath is the absolute path of the INF file on disk.
	ResolvedPath string `json:"resolved_path"`
	Name         string `json:"name"`
	// Type is the declared build role (DXE_DRIVER, PEIM, BASE, ...).
	// Unknown values pass through untouched.
	Type           string   `json:"type"`
	GUID           string   `json:"guid"`
	Sources        []string `json:"sources"`
	LibraryClasses []string `json:"library_classes"`
	Architectures  []string `json:"architectures"`
}

// Dir returns the directory containing the module's INF file.
func (m ModuleDescriptor) Dir() string {
	return filepath.Dir(m.ResolvedPath)
}

// BuildContext is the structured result of parsing one platform descriptor
// under one configuration. It is the unit the cache keys on.
type BuildContext struct {
	DescriptorPath string            `json:"descriptor_path"`
	WorkspaceRoot  string            `json:"workspace_root"`
	Flags          map[string]string `json:"flags"`
	Modules        []ModuleDescriptor `json:"modules"`
	// LibraryMappings maps a library-class name to the descriptor path of
	// the implementation the platform bound it to (last binding wins).
	LibraryMappings map[string]string `json:"library_mappings"`
	Defines         map[string]string `json:"defines"`
	ParsedAt        time.Time         `json:"parsed_at"`
}

// NormalizePath produces the canonical form used for module path
// comparisons: forward slashes, lower case.
func NormalizePath(path string) string {
	return strings.ToLower(filepath.ToSlash(strings.TrimSpace(path)))
}

// ParseError reports an unreadable or structurally unusable descriptor.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("descriptor %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("descriptor %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
