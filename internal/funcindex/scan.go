package funcindex

import (
	"os"
	"regexp"
	"strings"
)

// The scanner recognizes the signature shape used across EDK2 sources:
// optional STATIC/INLINE modifiers, a (possibly pointer-qualified) return
// type, an optional calling-convention token from a small fixed vocabulary,
// the function name, and a parameter list that routinely spans several
// lines. A trailing brace makes it a definition, a semicolon a declaration.
const callingConventions = `EFIAPI|WINAPI|__cdecl|__stdcall`

var (
	definitionRe = regexp.MustCompile(
		`(?m)^[ \t]*((?:(?i:STATIC)\s+)?(?:(?i:INLINE)\s+)?)` +
			`([A-Za-z_][A-Za-z0-9_]*(?:\s*\*+)?)\s+` +
			`(?:(` + callingConventions + `)\s+)?` +
			`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*\{`)

	declarationRe = regexp.MustCompile(
		`(?m)^[ \t]*((?:(?i:STATIC)\s+)?(?:(?i:INLINE)\s+)?)` +
			`([A-Za-z_][A-Za-z0-9_]*(?:\s*\*+)?)\s+` +
			`(?:(` + callingConventions + `)\s+)?` +
			`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*;`)

	callRe = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// reservedWords are C constructs the signature regexes would otherwise
// mistake for return types or function names.
var reservedWords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "return": true, "goto": true,
	"typedef": true, "struct": true, "union": true, "enum": true,
	"sizeof": true,
}

// controlKeywords are excluded from call-site candidates.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"sizeof": true, "return": true,
}

var paramQualifiers = map[string]bool{
	"IN": true, "OUT": true, "OPTIONAL": true, "CONST": true,
}

// fileScan is everything one pass over a source file yields.
type fileScan struct {
	File         string
	Module       string
	Definitions  []Definition
	Declarations []FunctionLocation
	Calls        []CallEdge
}

func scanSource(path, module string) (*fileScan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)

	scan := &fileScan{File: path, Module: module}
	scan.Definitions = extractDefinitions(content, path, module)
	scan.Declarations = extractDeclarations(content, path, module)
	scan.Calls = extractCalls(content, path, scan.Definitions)
	return scan, nil
}

// lineSpan is an inclusive line range.
type lineSpan struct {
	start int
	end   int
}

// declarationSpans returns the line range of every forward declaration, so
// call extraction can skip the name-followed-by-paren text inside them.
func declarationSpans(content string) []lineSpan {
	var spans []lineSpan
	for _, m := range declarationRe.FindAllStringIndex(content, -1) {
		spans = append(spans, lineSpan{start: lineOf(content, m[0]), end: lineOf(content, m[1])})
	}
	return spans
}

func inSpans(spans []lineSpan, line int) bool {
	for _, span := range spans {
		if line >= span.start && line <= span.end {
			return true
		}
	}
	return false
}

func extractDefinitions(content, path, module string) []Definition {
	lines := strings.Split(content, "\n")
	var defs []Definition

	for _, m := range definitionRe.FindAllStringSubmatchIndex(content, -1) {
		modifiers := strings.ToUpper(strings.TrimSpace(group(content, m, 1)))
		returnType := normalizeSpace(group(content, m, 2))
		conv := group(content, m, 3)
		name := group(content, m, 4)
		params := group(content, m, 5)
		if reservedWords[strings.ToLower(returnType)] || reservedWords[strings.ToLower(name)] {
			continue
		}

		// The match ends at the opening brace; the signature is everything
		// before it.
		openBrace := m[1] - 1
		startLine := lineOf(content, m[0])

		defs = append(defs, Definition{
			FunctionLocation: FunctionLocation{
				Name:              name,
				File:              path,
				Line:              startLine,
				Module:            module,
				Signature:         normalizeSpace(content[m[0]:openBrace]),
				IsDefinition:      true,
				CallingConvention: conv,
				ReturnType:        returnType,
			},
			EndLine:    findBodyEnd(content, m[1]),
			SigEndLine: lineOf(content, openBrace),
			Parameters: parseParameters(params),
			IsStatic:   strings.Contains(modifiers, "STATIC"),
			IsInline:   strings.Contains(modifiers, "INLINE"),
			Doc:        docBefore(lines, startLine),
		})
	}

	return defs
}

func extractDeclarations(content, path, module string) []FunctionLocation {
	var decls []FunctionLocation

	for _, m := range declarationRe.FindAllStringSubmatchIndex(content, -1) {
		returnType := normalizeSpace(group(content, m, 2))
		conv := group(content, m, 3)
		name := group(content, m, 4)
		if reservedWords[strings.ToLower(returnType)] || reservedWords[strings.ToLower(name)] {
			continue
		}

		decls = append(decls, FunctionLocation{
			Name:              name,
			File:              path,
			Line:              lineOf(content, m[0]),
			Module:            module,
			Signature:         normalizeSpace(strings.TrimSuffix(content[m[0]:m[1]], ";")),
			IsDefinition:      false,
			CallingConvention: conv,
			ReturnType:        returnType,
		})
	}

	return decls
}

// extractCalls treats every identifier immediately followed by "(" as a call
// candidate, excluding comment and preprocessor lines, control keywords,
// forward-declaration lines, and the signature lines of the definition being
// opened. The enclosing function is whichever definition's body range covers
// the line.
func extractCalls(content, path string, defs []Definition) []CallEdge {
	lines := strings.Split(content, "\n")
	declSpans := declarationSpans(content)
	var calls []CallEdge

	for i, raw := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "/*") ||
			strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "#") {
			continue
		}

		for _, m := range callRe.FindAllStringSubmatch(raw, -1) {
			name := m[1]
			if controlKeywords[strings.ToLower(name)] {
				continue
			}
			if isSignatureLine(defs, name, lineNum) {
				continue
			}
			if inSpans(declSpans, lineNum) {
				continue
			}

			calls = append(calls, CallEdge{
				Caller:  enclosingFunction(defs, lineNum),
				Callee:  name,
				File:    path,
				Line:    lineNum,
				Context: contextWindow(lines, lineNum),
			})
		}
	}

	return calls
}

func isSignatureLine(defs []Definition, name string, line int) bool {
	for _, def := range defs {
		if def.Name == name && line >= def.Line && line <= def.SigEndLine {
			return true
		}
	}
	return false
}

func enclosingFunction(defs []Definition, line int) string {
	for _, def := range defs {
		if line >= def.Line && line <= def.EndLine {
			return def.Name
		}
	}
	return UnscopedCaller
}

// contextWindow joins the non-empty lines around a call site.
func contextWindow(lines []string, lineNum int) string {
	start := lineNum - 3
	if start < 0 {
		start = 0
	}
	end := lineNum + 1
	if end > len(lines) {
		end = len(lines)
	}

	var parts []string
	for _, line := range lines[start:end] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " | ")
}

// findBodyEnd counts brace depth from the character after the opening brace
// and returns the line of the matching close.
func findBodyEnd(content string, afterOpen int) int {
	depth := 1
	pos := afterOpen
	for pos < len(content) && depth > 0 {
		switch content[pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		pos++
	}
	return lineOf(content, pos-1)
}

// docBefore captures the /* ... */ block immediately above a definition.
// The block must end on the line directly above; a blank line in between
// detaches it. Interior lines need no leading asterisk, matching the
// firmware doc style of bare prose between /** and **/.
func docBefore(lines []string, defLine int) string {
	end := defLine - 2
	if end < 0 || end >= len(lines) {
		return ""
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[end]), "*/") {
		return ""
	}
	for i := end; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "/*") {
			return strings.Join(lines[i:end+1], "\n")
		}
	}
	return ""
}

// parseParameters splits the parameter text on top-level commas and
// decomposes each parameter into qualifier, base type, pointer marker, and
// name. Parameters that do not match that shape keep only their raw text.
func parseParameters(params string) []Parameter {
	var out []Parameter
	for _, raw := range splitTopLevel(params) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "VOID") {
			continue
		}
		out = append(out, parseParameter(raw))
	}
	return out
}

// splitTopLevel splits on commas outside parentheses so function-pointer
// parameters stay intact.
func splitTopLevel(params string) []string {
	var parts []string
	depth := 0
	current := strings.Builder{}

	for _, r := range params {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
				continue
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func parseParameter(raw string) Parameter {
	param := Parameter{Raw: normalizeSpace(raw)}

	fields := strings.Fields(strings.ReplaceAll(param.Raw, "*", " * "))
	var qualifiers []string
	i := 0
	for i < len(fields) && paramQualifiers[fields[i]] {
		qualifiers = append(qualifiers, fields[i])
		i++
	}
	for len(fields) > i+1 && paramQualifiers[fields[len(fields)-1]] {
		qualifiers = append(qualifiers, fields[len(fields)-1])
		fields = fields[:len(fields)-1]
	}

	rest := fields[i:]
	if len(rest) < 2 || rest[0] == "*" {
		return param
	}

	baseType := rest[0]
	pointer := false
	j := 1
	for j < len(rest)-1 && rest[j] == "*" {
		pointer = true
		j++
	}
	if j != len(rest)-1 || rest[j] == "*" {
		return param
	}

	param.Qualifier = strings.Join(qualifiers, " ")
	param.Type = baseType
	if pointer {
		param.Type += " *"
	}
	param.Name = rest[j]
	return param
}

func group(content string, m []int, idx int) string {
	if m[2*idx] < 0 {
		return ""
	}
	return strings.TrimSpace(content[m[2*idx]:m[2*idx+1]])
}

func lineOf(content string, idx int) int {
	if idx > len(content) {
		idx = len(content)
	}
	return strings.Count(content[:idx], "\n") + 1
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
