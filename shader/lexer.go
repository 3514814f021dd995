package shader

import (
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokPunct
	tokGroup // a balanced {...} at global scope, body held in token.body
)

type token struct {
	kind tokenKind
	text string
	line int
	// cond is true when the token sits inside a #if/#ifdef/#ifndef block.
	cond bool
	body []token
}

func (t token) is(s string) bool { return t.kind == tokPunct && t.text == s }

// source is one stage after preprocessing: the token stream plus the
// object-like macros it defined.
type source struct {
	stage  Stage
	tokens []token
	macros map[string]string
}

// lex strips comments, interprets preprocessor lines and splits the rest of
// the text into tokens. Directives the scanner cannot resolve statically are
// reported as errors rather than skipped.
func lex(stage Stage, text string) (*source, error) {
	src := &source{stage: stage, macros: make(map[string]string)}
	text = stripComments(strings.ReplaceAll(text, "\x00", ""))

	condDepth := 0
	lines := joinContinuations(strings.Split(text, "\n"))
	for n, line := range lines {
		lineNo := n + 1
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			var err error
			condDepth, err = src.directive(trimmed[1:], lineNo, condDepth)
			if err != nil {
				return nil, err
			}
			continue
		}
		src.tokens = append(src.tokens, splitTokens(line, lineNo, condDepth > 0)...)
	}
	if condDepth != 0 {
		return nil, &ParseError{Stage: stage, Line: len(lines), Msg: "unterminated conditional block"}
	}
	return src, nil
}

func (s *source) directive(body string, line, condDepth int) (int, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return condDepth, nil
	}
	switch fields[0] {
	case "version", "extension", "pragma", "line", "error", "undef":
	case "define":
		if len(fields) < 2 {
			return condDepth, &ParseError{Stage: s.stage, Line: line, Msg: "#define without a name"}
		}
		name := fields[1]
		if i := strings.IndexByte(name, '('); i >= 0 {
			// Function-like macros never name an input.
			return condDepth, nil
		}
		s.macros[name] = strings.Join(fields[2:], " ")
	case "if", "ifdef", "ifndef":
		condDepth++
	case "elif", "else":
		if condDepth == 0 {
			return condDepth, &ParseError{Stage: s.stage, Line: line, Msg: "#" + fields[0] + " without #if"}
		}
	case "endif":
		if condDepth == 0 {
			return condDepth, &ParseError{Stage: s.stage, Line: line, Msg: "#endif without #if"}
		}
		condDepth--
	case "include":
		return condDepth, &ParseError{Stage: s.stage, Line: line, Msg: "#include cannot be resolved"}
	default:
		return condDepth, &ParseError{Stage: s.stage, Line: line, Msg: "unknown directive #" + fields[0]}
	}
	return condDepth, nil
}

// joinContinuations folds backslash-continued lines into the first line and
// leaves the continued lines empty so line numbers stay stable.
func joinContinuations(lines []string) []string {
	for i := 0; i < len(lines); i++ {
		j := i + 1
		for strings.HasSuffix(lines[i], "\\") && j < len(lines) {
			lines[i] = strings.TrimSuffix(lines[i], "\\") + " " + lines[j]
			lines[j] = ""
			j++
		}
	}
	return lines
}

func splitTokens(line string, lineNo int, cond bool) []token {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(line) && isIdentPart(line[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: line[i:j], line: lineNo, cond: cond})
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(line) && isDigit(line[i+1])):
			j := i + 1
			for j < len(line) && (isIdentPart(line[j]) || line[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: line[i:j], line: lineNo, cond: cond})
			i = j
		default:
			toks = append(toks, token{kind: tokPunct, text: string(c), line: lineNo, cond: cond})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// stripComments removes // and /* */ comments. Block comments keep their
// newlines so token line numbers match the original text.
func stripComments(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	inBlock := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inBlock {
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				sb.WriteByte('\n')
			}
			continue
		}
		if c == '/' && i+1 < len(text) {
			switch text[i+1] {
			case '*':
				inBlock = true
				sb.WriteByte(' ')
				i++
				continue
			case '/':
				for i < len(text) && text[i] != '\n' {
					i++
				}
				if i < len(text) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
