package rag

import (
	"regexp"
	"strings"

	"github.com/BaSui01/ragflow/types"
)

// Declaration patterns for JavaScript and TypeScript. Matches are anchored at
// line starts; nested declarations fall inside an enclosing unit's span and
// are dropped during assembly.
var (
	jsFunctionRe = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)
	jsClassRe    = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	jsArrowRe    = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=\n]+)?=\s*(?:async\s+)?(?:\([^)\n]*\)|[A-Za-z_$][\w$]*)\s*=>`)
	jsRouteRe    = regexp.MustCompile(`(?m)^[ \t]*[\w$.]+\.(get|post|put|delete|patch|all|use)\s*\(\s*(['"` + "`" + `])([^'"` + "`" + `]*)`)

	pyDefRe   = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)`)
	pyClassRe = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)`)
)

type scriptMatch struct {
	start int
	name  string
	role  types.SemanticRole
	kind  string // "brace", "call", "arrow"
}

// parseScriptSource extracts top-level functions, classes, arrow assignments
// and route registrations from JavaScript or TypeScript source. Text outside
// any declaration, before the first one, forms the preamble.
func parseScriptSource(source string) (preamble string, units []semanticUnit, err error) {
	var matches []scriptMatch
	for _, m := range jsFunctionRe.FindAllStringSubmatchIndex(source, -1) {
		matches = append(matches, scriptMatch{start: m[0], name: source[m[2]:m[3]], role: types.RoleFunction, kind: "brace"})
	}
	for _, m := range jsClassRe.FindAllStringSubmatchIndex(source, -1) {
		matches = append(matches, scriptMatch{start: m[0], name: source[m[2]:m[3]], role: types.RoleClass, kind: "brace"})
	}
	for _, m := range jsArrowRe.FindAllStringSubmatchIndex(source, -1) {
		matches = append(matches, scriptMatch{start: m[0], name: source[m[2]:m[3]], role: types.RoleFunction, kind: "arrow"})
	}
	for _, m := range jsRouteRe.FindAllStringSubmatchIndex(source, -1) {
		name := strings.ToUpper(source[m[2]:m[3]]) + " " + source[m[6]:m[7]]
		matches = append(matches, scriptMatch{start: m[0], name: name, role: types.RoleRoute, kind: "call"})
	}
	if len(matches) == 0 {
		return "", nil, nil
	}

	sortMatches(matches)

	end := 0
	first := true
	for _, m := range matches {
		if m.start < end {
			continue // nested inside the previous unit
		}
		unitEnd := scanUnitEnd(source, m.start, m.kind)
		if unitEnd <= m.start {
			continue
		}
		if first {
			preamble = strings.TrimSpace(source[:m.start])
			first = false
		}
		units = append(units, semanticUnit{
			Content: strings.TrimRight(source[m.start:unitEnd], " \t"),
			Name:    m.name,
			Role:    m.role,
		})
		end = unitEnd
	}
	return preamble, units, nil
}

func sortMatches(matches []scriptMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].start < matches[j-1].start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// scanUnitEnd finds the byte offset just past the declaration starting at
// start. Brace units close at the matching brace, call units at the matching
// parenthesis, and arrow units at either a block body's brace or the end of
// the statement.
func scanUnitEnd(source string, start int, kind string) int {
	switch kind {
	case "brace":
		open := indexFrom(source, start, '{')
		if open < 0 {
			return -1
		}
		return scanBalanced(source, open, '{', '}')
	case "call":
		open := indexFrom(source, start, '(')
		if open < 0 {
			return -1
		}
		end := scanBalanced(source, open, '(', ')')
		if end > 0 && end < len(source) && source[end] == ';' {
			end++
		}
		return end
	case "arrow":
		arrow := strings.Index(source[start:], "=>")
		if arrow < 0 {
			return -1
		}
		rest := start + arrow + 2
		for rest < len(source) && (source[rest] == ' ' || source[rest] == '\t') {
			rest++
		}
		if rest < len(source) && source[rest] == '{' {
			end := scanBalanced(source, rest, '{', '}')
			if end > 0 && end < len(source) && source[end] == ';' {
				end++
			}
			return end
		}
		return scanStatementEnd(source, rest)
	}
	return -1
}

func indexFrom(source string, start int, c byte) int {
	i := strings.IndexByte(source[start:], c)
	if i < 0 {
		return -1
	}
	return start + i
}

// scanBalanced walks from the opener at open to just past its matching
// closer, ignoring brackets inside strings, template literals and comments.
func scanBalanced(source string, open int, opener, closer byte) int {
	depth := 0
	sc := scriptScanner{}
	for i := open; i < len(source); i++ {
		if !sc.advance(source, i) {
			continue
		}
		switch source[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// scanStatementEnd finds the end of an expression-bodied statement: the first
// semicolon or newline outside strings, comments and bracket nesting.
func scanStatementEnd(source string, start int) int {
	depth := 0
	sc := scriptScanner{}
	for i := start; i < len(source); i++ {
		if !sc.advance(source, i) {
			continue
		}
		switch source[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ';':
			if depth <= 0 {
				return i + 1
			}
		case '\n':
			if depth <= 0 {
				return i
			}
		}
	}
	return len(source)
}

// scriptScanner tracks string and comment state byte by byte. advance reports
// whether the byte at i is plain code.
type scriptScanner struct {
	quote        byte // active quote, 0 when outside strings
	escaped      bool
	lineComment  bool
	blockComment bool
}

func (s *scriptScanner) advance(source string, i int) bool {
	c := source[i]

	if s.lineComment {
		if c == '\n' {
			s.lineComment = false
		}
		return false
	}
	if s.blockComment {
		if c == '/' && i > 0 && source[i-1] == '*' {
			s.blockComment = false
		}
		return false
	}
	if s.quote != 0 {
		if s.escaped {
			s.escaped = false
			return false
		}
		switch c {
		case '\\':
			s.escaped = true
		case s.quote:
			s.quote = 0
		}
		return false
	}

	switch c {
	case '\'', '"', '`':
		s.quote = c
		return false
	case '/':
		if i+1 < len(source) {
			switch source[i+1] {
			case '/':
				s.lineComment = true
				return false
			case '*':
				s.blockComment = true
				return false
			}
		}
	}
	return true
}

// parsePythonSource extracts top-level def and class blocks by indentation.
// Decorator lines directly above a declaration travel with it; everything
// before the first declaration forms the preamble.
func parsePythonSource(source string) (preamble string, units []semanticUnit, err error) {
	lines := strings.Split(source, "\n")

	type block struct {
		startLine int
		endLine   int
		name      string
		role      types.SemanticRole
	}
	var blocks []block

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		name, role := pythonDeclaration(line)
		if name == "" {
			continue
		}

		start := i
		for start > 0 && strings.HasPrefix(strings.TrimRight(lines[start-1], " \t"), "@") {
			start--
		}

		end := i + 1
		for end < len(lines) {
			l := lines[end]
			if strings.TrimSpace(l) != "" && !strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t") {
				break
			}
			end++
		}
		// Trailing blank lines belong between units, not inside them.
		for end > i+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}

		blocks = append(blocks, block{startLine: start, endLine: end, name: name, role: role})
		i = end - 1
	}
	if len(blocks) == 0 {
		return "", nil, nil
	}

	preamble = strings.TrimSpace(strings.Join(lines[:blocks[0].startLine], "\n"))
	for _, b := range blocks {
		units = append(units, semanticUnit{
			Content: strings.Join(lines[b.startLine:b.endLine], "\n"),
			Name:    b.name,
			Role:    b.role,
		})
	}
	return preamble, units, nil
}

func pythonDeclaration(line string) (string, types.SemanticRole) {
	if m := pyDefRe.FindStringSubmatch(line); m != nil {
		return m[1], types.RoleFunction
	}
	if m := pyClassRe.FindStringSubmatch(line); m != nil {
		return m[1], types.RoleClass
	}
	return "", types.RoleNone
}
