package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a declaration the scanner cannot interpret with
// certainty. A program whose inputs cannot be derived exactly is rejected.
type ParseError struct {
	Stage Stage
	Line  int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("shader: %s:%d: %s", e.Stage, e.Line, e.Msg)
}

var qualifiers = map[string]bool{
	"const": true, "invariant": true, "precise": true,
	"flat": true, "smooth": true, "noperspective": true,
	"centroid": true, "sample": true, "patch": true,
	"highp": true, "mediump": true, "lowp": true,
	"uniform": true, "attribute": true, "varying": true,
	"in": true, "out": true, "inout": true, "buffer": true, "shared": true,
	"readonly": true, "writeonly": true, "coherent": true, "volatile": true, "restrict": true,
}

// Parse derives the input signature of a vertex/fragment pair. Attributes
// come from the vertex stage; uniforms and samplers of both stages are
// merged by name.
func Parse(vertex, fragment string) (Signature, error) {
	var sig Signature
	m := &merger{sig: &sig, index: make(map[string]declRef)}

	var stages [2]*stageInfo
	for i, st := range []struct {
		stage Stage
		text  string
	}{{StageVertex, vertex}, {StageFragment, fragment}} {
		src, err := lex(st.stage, st.text)
		if err != nil {
			return Signature{}, err
		}
		p := &parser{src: src, structs: make(map[string]bool), info: &stageInfo{precision: make(map[string]string)}}
		decls, err := p.parse()
		if err != nil {
			return Signature{}, err
		}
		for _, d := range decls {
			if err := m.add(d); err != nil {
				return Signature{}, err
			}
		}
		stages[i] = p.info
	}
	sig.Warnings = precisionWarnings(stages[0], stages[1])
	return sig, nil
}

type classified struct {
	Decl
	class Class
}

type declRef struct {
	class Class
	index int
}

type merger struct {
	sig   *Signature
	index map[string]declRef
}

func (m *merger) group(c Class) *[]Decl {
	switch c {
	case ClassAttribute:
		return &m.sig.Attributes
	case ClassUniform:
		return &m.sig.Uniforms
	}
	return &m.sig.Samplers
}

func (m *merger) add(d classified) error {
	ref, ok := m.index[d.Name]
	if !ok {
		g := m.group(d.class)
		*g = append(*g, d.Decl)
		m.index[d.Name] = declRef{class: d.class, index: len(*g) - 1}
		return nil
	}
	prev := &(*m.group(ref.class))[ref.index]
	if ref.class != d.class || prev.Type != d.Type || prev.ArrayLen != d.ArrayLen {
		return &ParseError{Stage: d.Stage, Line: d.Line, Msg: fmt.Sprintf(
			"%q redeclared as %s %s, previously %s %s", d.Name, d.class, typeString(d.Decl), ref.class, typeString(*prev))}
	}
	prev.Stage |= d.Stage
	if prev.Precision == "" {
		prev.Precision = d.Precision
	}
	return nil
}

func typeString(d Decl) string {
	if d.ArrayLen > 0 {
		return fmt.Sprintf("%s[%d]", d.Type, d.ArrayLen)
	}
	return d.Type.String()
}

// stageInfo records precision usage for the cross-stage lint.
type stageInfo struct {
	precision map[string]string // default precision statements, by type
	qualified bool              // any global declaration carries a precision qualifier
}

func (s *stageInfo) declares() bool { return len(s.precision) > 0 || s.qualified }

func precisionWarnings(vs, fs *stageInfo) []string {
	var warnings []string
	switch {
	case vs.declares() && !fs.declares():
		warnings = append(warnings, "precision qualifier declared in vertex stage only; values may diverge across stages")
	case fs.declares() && !vs.declares():
		warnings = append(warnings, "precision qualifier declared in fragment stage only; values may diverge across stages")
	}
	for typ, vp := range vs.precision {
		if fp, ok := fs.precision[typ]; ok && fp != vp {
			warnings = append(warnings, fmt.Sprintf("default %s precision differs between stages (vertex %s, fragment %s)", typ, vp, fp))
		}
	}
	return warnings
}

type parser struct {
	src     *source
	structs map[string]bool
	info    *stageInfo
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{Stage: p.src.stage, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// parse walks the global scope statement by statement. Function bodies are
// skipped; struct bodies and interface blocks become group tokens.
func (p *parser) parse() ([]classified, error) {
	var (
		decls []classified
		stmt  []token
	)
	toks := p.src.tokens
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.is("{"):
			end, err := p.matchBrace(toks, i)
			if err != nil {
				return nil, err
			}
			if len(stmt) > 0 && stmt[len(stmt)-1].is(")") {
				// function definition
				stmt = nil
			} else {
				stmt = append(stmt, token{kind: tokGroup, text: "{}", line: t.line, cond: t.cond, body: toks[i+1 : end]})
			}
			i = end
		case t.is("}"):
			return nil, p.errorf(t.line, "unbalanced '}'")
		case t.is(";"):
			ds, err := p.statement(stmt)
			if err != nil {
				return nil, err
			}
			decls = append(decls, ds...)
			stmt = nil
		default:
			stmt = append(stmt, t)
		}
	}
	if len(stmt) > 0 {
		return nil, p.errorf(stmt[0].line, "unterminated declaration")
	}
	return decls, nil
}

func (p *parser) matchBrace(toks []token, open int) (int, error) {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].is("{"):
			depth++
		case toks[i].is("}"):
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, p.errorf(toks[open].line, "unbalanced '{'")
}

func (p *parser) statement(stmt []token) ([]classified, error) {
	if len(stmt) == 0 {
		return nil, nil
	}
	if stmt[0].kind == tokIdent && stmt[0].text == "precision" {
		if len(stmt) != 3 {
			return nil, p.errorf(stmt[0].line, "malformed precision statement")
		}
		p.info.precision[stmt[2].text] = stmt[1].text
		return nil, nil
	}
	if stmt[0].kind == tokIdent && stmt[0].text == "struct" {
		if len(stmt) < 3 || stmt[1].kind != tokIdent || stmt[2].kind != tokGroup {
			return nil, p.errorf(stmt[0].line, "malformed struct declaration")
		}
		p.structs[stmt[1].text] = true
		return nil, nil
	}

	var (
		storage   string
		precision string
		i         int
	)
	for i < len(stmt) {
		t := stmt[i]
		if t.kind == tokIdent && t.text == "layout" {
			end := skipParens(stmt, i+1)
			if end < 0 {
				return nil, p.errorf(t.line, "malformed layout qualifier")
			}
			i = end + 1
			continue
		}
		if t.kind != tokIdent || !qualifiers[t.text] {
			break
		}
		switch t.text {
		case "uniform", "attribute", "varying", "in", "out", "inout", "buffer", "shared":
			storage = t.text
		case "highp", "mediump", "lowp":
			precision = t.text
			p.info.qualified = true
		}
		i++
	}

	switch storage {
	case "uniform":
	case "attribute":
		if p.src.stage != StageVertex {
			return nil, p.errorf(stmt[0].line, "attribute declared outside the vertex stage")
		}
	case "in":
		if p.src.stage != StageVertex {
			// fragment inputs are varyings
			return nil, nil
		}
	case "buffer":
		return nil, p.errorf(stmt[0].line, "storage blocks are not supported")
	default:
		// locals, constants, outputs, varyings and prototypes
		return nil, nil
	}

	rest := stmt[i:]
	if len(rest) == 0 {
		return nil, p.errorf(stmt[0].line, "declaration without a type")
	}
	if rest[0].kind == tokIdent && rest[0].text == "struct" {
		return nil, p.errorf(rest[0].line, "inline struct declarations are not supported")
	}
	if len(rest) > 1 && rest[1].kind == tokGroup {
		if storage == "uniform" {
			return nil, p.errorf(rest[0].line, "uniform block %q is not supported", rest[0].text)
		}
		return nil, p.errorf(rest[0].line, "input block %q is not supported", rest[0].text)
	}

	typ, err := p.resolveType(rest[0])
	if err != nil {
		return nil, err
	}
	rest = rest[1:]
	typeArray := 0
	if len(rest) > 0 && rest[0].is("[") {
		n, used, err := p.arraySize(rest)
		if err != nil {
			return nil, err
		}
		typeArray = n
		rest = rest[used:]
	}

	class := ClassUniform
	switch {
	case storage == "attribute" || storage == "in":
		class = ClassAttribute
		if typ.IsSampler() || typ == Bool {
			return nil, p.errorf(stmt[0].line, "%s is not a valid attribute type", typ)
		}
	case typ.IsSampler():
		class = ClassSampler
	}

	var decls []classified
	for _, part := range splitAtTopLevelCommas(rest) {
		if len(part) == 0 || part[0].kind != tokIdent {
			return nil, p.errorf(stmt[0].line, "malformed declarator")
		}
		if part[0].cond {
			return nil, p.errorf(part[0].line, "declaration of %q inside a conditional block", part[0].text)
		}
		if _, isMacro := p.src.macros[part[0].text]; isMacro {
			return nil, p.errorf(part[0].line, "input name %q is a macro", part[0].text)
		}
		d := Decl{Name: part[0].text, Type: typ, ArrayLen: typeArray, Precision: precision, Stage: p.src.stage, Line: part[0].line}
		tail := part[1:]
		if len(tail) > 0 && tail[0].is("[") {
			if typeArray > 0 {
				return nil, p.errorf(d.Line, "%q has two array sizes", d.Name)
			}
			n, used, err := p.arraySize(tail)
			if err != nil {
				return nil, err
			}
			d.ArrayLen = n
			tail = tail[used:]
		}
		if len(tail) > 0 && !tail[0].is("=") {
			return nil, p.errorf(d.Line, "unexpected %q after %q", tail[0].text, d.Name)
		}
		if class == ClassAttribute && d.ArrayLen > 0 {
			return nil, p.errorf(d.Line, "attribute %q cannot be an array", d.Name)
		}
		decls = append(decls, classified{Decl: d, class: class})
	}
	return decls, nil
}

func (p *parser) resolveType(t token) (Type, error) {
	if t.kind != tokIdent {
		return TypeInvalid, p.errorf(t.line, "expected a type, found %q", t.text)
	}
	if typ, ok := LookupType(t.text); ok {
		return typ, nil
	}
	if _, ok := p.src.macros[t.text]; ok {
		return TypeInvalid, p.errorf(t.line, "type %q is a macro", t.text)
	}
	if p.structs[t.text] {
		return TypeInvalid, p.errorf(t.line, "struct type %q cannot be bound as a single input", t.text)
	}
	return TypeInvalid, p.errorf(t.line, "unknown type %q", t.text)
}

// arraySize parses "[N]" at the start of toks and returns N and the number
// of tokens consumed. N may be a literal or an object-like macro.
func (p *parser) arraySize(toks []token) (int, int, error) {
	if len(toks) < 3 || !toks[2].is("]") {
		return 0, 0, p.errorf(toks[0].line, "array size must be a single constant")
	}
	text := toks[1].text
	if toks[1].kind == tokIdent {
		v, ok := p.src.macros[text]
		if !ok {
			return 0, 0, p.errorf(toks[1].line, "array size %q is not a known constant", text)
		}
		text = strings.TrimSpace(v)
	}
	n, err := strconv.Atoi(strings.TrimRight(text, "uU"))
	if err != nil || n <= 0 {
		return 0, 0, p.errorf(toks[1].line, "invalid array size %q", toks[1].text)
	}
	return n, 3, nil
}

func skipParens(toks []token, open int) int {
	if open >= len(toks) || !toks[open].is("(") {
		return -1
	}
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].is("("):
			depth++
		case toks[i].is(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitAtTopLevelCommas splits a declarator list at commas that are not
// nested inside parentheses or brackets.
func splitAtTopLevelCommas(toks []token) [][]token {
	var parts [][]token
	depth := 0
	start := 0
	for i, t := range toks {
		switch {
		case t.is("(") || t.is("["):
			depth++
		case t.is(")") || t.is("]"):
			if depth > 0 {
				depth--
			}
		case t.is(","):
			if depth == 0 {
				parts = append(parts, toks[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, toks[start:])
}
