// # internal/engine/parser/typeref.go
package parser

import (
	"slices"
	"strings"
)

// TypeRef is the canonical form of a type annotation: Simple, Generic,
// Union or Optional. Unions never contain None, nested unions or Optional
// alternatives; those are folded into an enclosing Optional.
type TypeRef interface {
	String() string
	typeRef()
}

type Simple struct {
	Name string
}

type Generic struct {
	Name string
	Args []TypeRef
}

type Union struct {
	Alternatives []TypeRef
}

type Optional struct {
	Inner TypeRef
}

func (Simple) typeRef()   {}
func (Generic) typeRef()  {}
func (Union) typeRef()    {}
func (Optional) typeRef() {}

func (s Simple) String() string { return s.Name }

func (g Generic) String() string {
	return g.Name + "[" + joinTypes(g.Args) + "]"
}

func (u Union) String() string {
	return "Union[" + joinTypes(u.Alternatives) + "]"
}

func (o Optional) String() string {
	return "Optional[" + o.Inner.String() + "]"
}

func joinTypes(ts []TypeRef) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// EqualTypes compares two TypeRefs structurally. Union alternatives are
// compared as sets.
func EqualTypes(a, b TypeRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Simple:
		y, ok := b.(Simple)
		return ok && x.Name == y.Name
	case Generic:
		y, ok := b.(Generic)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !EqualTypes(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case Union:
		y, ok := b.(Union)
		if !ok || len(x.Alternatives) != len(y.Alternatives) {
			return false
		}
		for _, alt := range x.Alternatives {
			if !slices.ContainsFunc(y.Alternatives, func(o TypeRef) bool { return EqualTypes(alt, o) }) {
				return false
			}
		}
		return true
	case Optional:
		y, ok := b.(Optional)
		return ok && EqualTypes(x.Inner, y.Inner)
	}
	return false
}

func isNoneType(t TypeRef) bool {
	s, ok := t.(Simple)
	return ok && s.Name == "None"
}

// makeUnion flattens, dedupes and strips None from alts. A union that
// contained None becomes Optional of what is left; a single survivor is
// returned bare.
func makeUnion(alts []TypeRef) TypeRef {
	var flat []TypeRef
	seen := make(map[string]bool)
	hasNone := false

	var add func(t TypeRef)
	add = func(t TypeRef) {
		switch v := t.(type) {
		case Union:
			for _, a := range v.Alternatives {
				add(a)
			}
		case Optional:
			hasNone = true
			add(v.Inner)
		default:
			if isNoneType(t) {
				hasNone = true
				return
			}
			key := t.String()
			if seen[key] {
				return
			}
			seen[key] = true
			flat = append(flat, t)
		}
	}
	for _, a := range alts {
		add(a)
	}

	var core TypeRef
	switch len(flat) {
	case 0:
		return Simple{Name: "None"}
	case 1:
		core = flat[0]
	default:
		core = Union{Alternatives: flat}
	}
	if hasNone {
		return Optional{Inner: core}
	}
	return core
}

func makeOptional(t TypeRef) TypeRef {
	return makeUnion([]TypeRef{t, Simple{Name: "None"}})
}

const maxForwardRefDepth = 8

// NormalizeAnnotation parses annotation text into a TypeRef. It never fails:
// text that is not a name, subscription, union or string forward reference
// comes back as Simple holding the trimmed text, with ok false.
func NormalizeAnnotation(text string) (TypeRef, bool) {
	return normalizeDepth(text, 0)
}

func normalizeDepth(text string, depth int) (TypeRef, bool) {
	raw := strings.TrimSpace(text)
	opaque := Simple{Name: collapseSpace(raw)}
	if raw == "" || depth > maxForwardRefDepth {
		return opaque, false
	}

	var toks []Token
	for tok, err := range NewScanner("<annotation>", []byte(raw), ScanOptions{LenientEscapes: true}).All() {
		if err != nil {
			return opaque, false
		}
		if !tok.isLayout() {
			toks = append(toks, tok)
		}
	}

	n := &normalizer{src: raw, toks: toks, depth: depth}
	t, ok := n.union()
	if !ok || n.i != len(n.toks) {
		return opaque, false
	}
	return t, true
}

type normalizer struct {
	src   string
	toks  []Token
	i     int
	depth int
}

func (n *normalizer) peek() (Token, bool) {
	if n.i < len(n.toks) {
		return n.toks[n.i], true
	}
	return Token{}, false
}

func (n *normalizer) acceptOp(op string) bool {
	if tok, ok := n.peek(); ok && tok.IsOp(op) {
		n.i++
		return true
	}
	return false
}

func (n *normalizer) union() (TypeRef, bool) {
	first, ok := n.primary()
	if !ok {
		return nil, false
	}
	alts := []TypeRef{first}
	for n.acceptOp("|") {
		next, ok := n.primary()
		if !ok {
			return nil, false
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, true
	}
	return makeUnion(alts), true
}

func (n *normalizer) primary() (TypeRef, bool) {
	tok, ok := n.peek()
	if !ok {
		return nil, false
	}

	switch {
	case tok.Kind == TokenString:
		n.i++
		inner, ok := stringValue(tok.Text)
		if !ok {
			return nil, false
		}
		return normalizeDepth(inner, n.depth+1)
	case tok.IsKeyword("None"):
		n.i++
		return Simple{Name: "None"}, true
	case tok.IsOp("..."):
		n.i++
		return Simple{Name: "..."}, true
	case tok.IsOp("["):
		// Parameter lists such as the first argument of Callable[[int], str].
		start := tok.Pos.Offset
		if !n.skipBalanced() {
			return nil, false
		}
		return Simple{Name: collapseSpace(n.src[start:n.toks[n.i-1].End.Offset])}, true
	case tok.Kind != TokenName:
		return nil, false
	}

	name := n.dottedName()
	if !n.acceptOp("[") {
		return Simple{Name: name}, true
	}

	last := name[strings.LastIndexByte(name, '.')+1:]
	if last == "Literal" {
		args, ok := n.rawArgs()
		if !ok {
			return nil, false
		}
		return Generic{Name: name, Args: args}, true
	}

	args, ok := n.typeArgs()
	if !ok {
		return nil, false
	}
	switch last {
	case "Optional":
		if len(args) != 1 {
			return nil, false
		}
		return makeOptional(args[0]), true
	case "Union":
		return makeUnion(args), true
	}
	return Generic{Name: name, Args: args}, true
}

func (n *normalizer) dottedName() string {
	var b strings.Builder
	b.WriteString(n.toks[n.i].Text)
	n.i++
	for n.i+1 < len(n.toks) && n.toks[n.i].IsOp(".") && n.toks[n.i+1].Kind == TokenName {
		b.WriteByte('.')
		b.WriteString(n.toks[n.i+1].Text)
		n.i += 2
	}
	return b.String()
}

// typeArgs parses a comma-separated list of types up to and including ']'.
func (n *normalizer) typeArgs() ([]TypeRef, bool) {
	var args []TypeRef
	for {
		if n.acceptOp("]") {
			return args, len(args) > 0
		}
		arg, ok := n.union()
		if !ok {
			return nil, false
		}
		args = append(args, arg)
		if n.acceptOp(",") {
			continue
		}
		if !n.acceptOp("]") {
			return nil, false
		}
		return args, true
	}
}

// rawArgs keeps each comma-separated argument as opaque text.
func (n *normalizer) rawArgs() ([]TypeRef, bool) {
	var args []TypeRef
	for {
		tok, ok := n.peek()
		if !ok {
			return nil, false
		}
		if tok.IsOp("]") {
			n.i++
			return args, len(args) > 0
		}
		start := tok.Pos.Offset
		end := start
		depth := 0
		for {
			tok, ok := n.peek()
			if !ok {
				return nil, false
			}
			if depth == 0 && (tok.IsOp(",") || tok.IsOp("]")) {
				break
			}
			if isOpenBracket(tok) {
				depth++
			} else if isCloseBracket(tok) {
				depth--
			}
			end = tok.End.Offset
			n.i++
		}
		if end == start {
			return nil, false
		}
		args = append(args, Simple{Name: collapseSpace(n.src[start:end])})
		n.acceptOp(",")
	}
}

func (n *normalizer) skipBalanced() bool {
	depth := 0
	for {
		tok, ok := n.peek()
		if !ok {
			return false
		}
		n.i++
		if isOpenBracket(tok) {
			depth++
		} else if isCloseBracket(tok) {
			depth--
			if depth == 0 {
				return true
			}
		}
	}
}

// stringValue returns the body of a str literal token. Byte and f-strings
// are rejected.
func stringValue(lit string) (string, bool) {
	i := 0
	for i < len(lit) && lit[i] != '"' && lit[i] != '\'' {
		switch lit[i] {
		case 'b', 'B', 'f', 'F':
			return "", false
		}
		i++
	}
	body := lit[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
