package depgraph

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// buildIncludeEdges scans each module's sources for #include lines and maps
// every include target to a module by first-path-segment equality. Files
// that cannot be read are skipped; a partial include graph is still useful.
func (g *Graph) buildIncludeEdges() {
	segmentOwners := g.firstSegmentOwners()

	for _, key := range g.sortedNodeKeys() {
		module := g.Nodes[key]
		seen := make(map[string]bool)
		var targets []string

		for _, source := range module.Sources {
			for _, include := range scanIncludes(filepath.Join(module.Dir(), filepath.FromSlash(source))) {
				owner, ok := segmentOwners[firstSegment(include)]
				if !ok || owner == key || seen[owner] {
					continue
				}
				seen[owner] = true
				targets = append(targets, owner)
			}
		}
		g.IncludeEdges[key] = targets
	}
}

// firstSegmentOwners maps a lowercased first path segment (the package
// directory, usually) to the first module key under it, in sorted order so
// attribution is deterministic.
func (g *Graph) firstSegmentOwners() map[string]string {
	owners := make(map[string]string)
	for _, key := range g.sortedNodeKeys() {
		segment := firstSegment(key)
		if segment == "" {
			continue
		}
		if _, ok := owners[segment]; !ok {
			owners[segment] = key
		}
	}
	return owners
}

func firstSegment(path string) string {
	path = strings.ToLower(strings.TrimSpace(path))
	if idx := strings.Index(path, "/"); idx != -1 {
		return path[:idx]
	}
	return ""
}

// scanIncludes extracts the quoted or angle-bracketed target of each
// #include line, one name per mention.
func scanIncludes(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var includes []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#include") {
			continue
		}
		if target, ok := includeTarget(line); ok {
			includes = append(includes, target)
		}
	}
	return includes
}

func includeTarget(line string) (string, bool) {
	for _, delims := range [][2]string{{`"`, `"`}, {"<", ">"}} {
		start := strings.Index(line, delims[0])
		if start == -1 {
			continue
		}
		end := strings.Index(line[start+1:], delims[1])
		if end <= 0 {
			continue
		}
		return filepath.ToSlash(line[start+1 : start+1+end]), true
	}
	return "", false
}
