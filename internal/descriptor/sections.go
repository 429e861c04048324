package descriptor

import (
	"regexp"
	"strings"
)

// DSC and INF files share one section syntax: a [SectionName] header opens a
// section that runs until the next header. Qualified headers like
// [Sources.X64] or [LibraryClasses.common] belong to the bare section name.
// Conditional directives (!if/!ifdef/!ifndef/!else/!endif) gate the lines
// between them; a false branch suppresses its content, including nested
// blocks.

var sectionHeaderRe = regexp.MustCompile(`^\[\s*([^\]]+?)\s*\]$`)

// ExtractSection returns the cleaned content lines of every section matching
// name (case-insensitive, including [name.qualifier] variants). found reports
// whether at least one matching header was seen, so callers can distinguish
// an absent section from an empty one. env feeds the conditional evaluator.
func ExtractSection(content, name string, env map[string]string) (lines []string, found bool) {
	want := strings.ToLower(name)
	inSection := false
	conds := conditionStack{}

	for _, raw := range strings.Split(content, "\n") {
		line := stripInlineComment(raw)
		if line == "" {
			continue
		}

		if isDirective(line) {
			conds.apply(line, env)
			continue
		}
		if !conds.active() {
			continue
		}

		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			header := strings.ToLower(m[1])
			inSection = header == want || strings.HasPrefix(header, want+".")
			if inSection {
				found = true
			}
			continue
		}

		if inSection {
			lines = append(lines, line)
		}
	}

	return lines, found
}

func stripInlineComment(line string) string {
	if idx := strings.Index(line, "#"); idx != -1 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func isDirective(line string) bool {
	return strings.HasPrefix(line, "!")
}

type conditionFrame struct {
	parentActive bool
	active       bool
	taken        bool // some branch of this !if chain already ran
}

type conditionStack struct {
	frames []conditionFrame
}

func (s *conditionStack) active() bool {
	for _, f := range s.frames {
		if !f.active {
			return false
		}
	}
	return true
}

func (s *conditionStack) apply(line string, env map[string]string) {
	directive, arg := splitDirective(line)

	switch directive {
	case "!if":
		s.push(evalCondition(arg, env), env)
	case "!ifdef":
		_, defined := lookupEnv(arg, env)
		s.push(defined, env)
	case "!ifndef":
		_, defined := lookupEnv(arg, env)
		s.push(!defined, env)
	case "!elseif":
		if len(s.frames) == 0 {
			return
		}
		top := &s.frames[len(s.frames)-1]
		if top.taken {
			top.active = false
			return
		}
		top.active = top.parentActive && evalCondition(arg, env)
		if top.active {
			top.taken = true
		}
	case "!else":
		if len(s.frames) == 0 {
			return
		}
		top := &s.frames[len(s.frames)-1]
		top.active = top.parentActive && !top.taken
		top.taken = true
	case "!endif":
		if len(s.frames) > 0 {
			s.frames = s.frames[:len(s.frames)-1]
		}
	default:
		// !include, !error and friends are skipped but never gate content.
	}
}

func (s *conditionStack) push(result bool, env map[string]string) {
	parent := s.active()
	s.frames = append(s.frames, conditionFrame{
		parentActive: parent,
		active:       parent && result,
		taken:        result,
	})
}

func splitDirective(line string) (directive, arg string) {
	fields := strings.SplitN(line, " ", 2)
	directive = strings.ToLower(strings.TrimSpace(fields[0]))
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	return directive, arg
}

// evalCondition evaluates the small expression subset the descriptors
// actually use: $(VAR) expansion, quoted or bare operands around == / !=,
// TRUE/FALSE literals, and bare-name truthiness. Anything it cannot decide
// evaluates to true so an exotic guard never drops build content.
func evalCondition(expr string, env map[string]string) bool {
	expr = expandVars(strings.TrimSpace(expr), env)
	if expr == "" {
		return true
	}

	if op := firstOperator(expr, "==", "!="); op != "" {
		parts := strings.SplitN(expr, op, 2)
		left := unquote(parts[0])
		right := unquote(parts[1])
		if op == "==" {
			return strings.EqualFold(left, right)
		}
		return !strings.EqualFold(left, right)
	}

	switch strings.ToUpper(unquote(expr)) {
	case "TRUE", "1":
		return true
	case "FALSE", "0":
		return false
	}

	if value, ok := lookupEnv(expr, env); ok {
		return truthy(value)
	}
	return true
}

func firstOperator(expr string, ops ...string) string {
	best := ""
	bestIdx := -1
	for _, op := range ops {
		if idx := strings.Index(expr, op); idx != -1 && (bestIdx == -1 || idx < bestIdx) {
			best = op
			bestIdx = idx
		}
	}
	return best
}

var varRefRe = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)

func expandVars(expr string, env map[string]string) string {
	return varRefRe.ReplaceAllStringFunc(expr, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if value, ok := lookupEnv(name, env); ok {
			return value
		}
		return ref
	})
}

func lookupEnv(name string, env map[string]string) (string, bool) {
	name = strings.TrimSpace(name)
	if value, ok := env[name]; ok {
		return value, true
	}
	for key, value := range env {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"'`)
}

func truthy(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "FALSE", "0":
		return false
	}
	return true
}
