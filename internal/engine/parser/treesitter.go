// # internal/engine/parser/treesitter.go
package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// outlineEntry is one top-level declaration as seen by either parser.
type outlineEntry struct {
	kind    SymbolKind
	name    string
	members []string
	span    Span
}

func (e outlineEntry) String() string {
	if e.kind == KindClass {
		return "class " + e.name
	}
	return "def " + e.name
}

// nodeHandler returns true when the walker must not descend into node.
type nodeHandler func(ctx *outlineContext, node *sitter.Node) bool

type outlineContext struct {
	source  []byte
	entries []outlineEntry
}

func (c *outlineContext) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

func nodeSpan(node *sitter.Node) Span {
	start, end := node.StartPosition(), node.EndPosition()
	return Span{
		Start: Position{Offset: int(node.StartByte()), Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:   Position{Offset: int(node.EndByte()), Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}
}

// treeWalker dispatches handlers by node kind. Kinds without a handler go
// to fallback; a nil fallback descends.
type treeWalker struct {
	handlers map[string]nodeHandler
	fallback nodeHandler
}

func (w *treeWalker) walk(ctx *outlineContext, node *sitter.Node) {
	if node == nil {
		return
	}
	handler, ok := w.handlers[node.Kind()]
	if !ok {
		handler = w.fallback
	}
	if handler != nil && handler(ctx, node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(ctx, node.Child(i))
	}
}

func descend(*outlineContext, *sitter.Node) bool { return false }
func stop(*outlineContext, *sitter.Node) bool    { return true }

// OutlineVerifier cross-checks the hand-written parser against the
// tree-sitter Python grammar: both must agree on the top-level functions,
// classes and direct methods of a file.
type OutlineVerifier struct {
	pool   *ParserPool
	walker *treeWalker
}

func NewOutlineVerifier() *OutlineVerifier {
	v := &OutlineVerifier{pool: NewParserPool(PythonLanguage())}
	v.walker = &treeWalker{
		handlers: map[string]nodeHandler{
			"module":               descend,
			"decorated_definition": descend,
			"function_definition":  v.function,
			"class_definition":     v.class,
		},
		fallback: stop,
	}
	return v
}

func (v *OutlineVerifier) function(ctx *outlineContext, node *sitter.Node) bool {
	ctx.entries = append(ctx.entries, outlineEntry{
		kind: KindFunction,
		name: ctx.text(node.ChildByFieldName("name")),
		span: nodeSpan(node),
	})
	return true
}

func (v *OutlineVerifier) class(ctx *outlineContext, node *sitter.Node) bool {
	entry := outlineEntry{
		kind: KindClass,
		name: ctx.text(node.ChildByFieldName("name")),
		span: nodeSpan(node),
	}
	body := node.ChildByFieldName("body")
	for i := uint(0); body != nil && i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() == "decorated_definition" {
			child = child.ChildByFieldName("definition")
		}
		if child != nil && child.Kind() == "function_definition" {
			entry.members = append(entry.members, ctx.text(child.ChildByFieldName("name")))
		}
	}
	ctx.entries = append(ctx.entries, entry)
	return true
}

// Verify returns outline-mismatch diagnostics for every disagreement between
// file and the tree-sitter reading of src.
func (v *OutlineVerifier) Verify(file *SourceFile, src []byte) []Diagnostic {
	sp := v.pool.Get()
	defer v.pool.Put(sp)

	tree := sp.Parse(src, nil)
	if tree == nil {
		return []Diagnostic{{Kind: DiagOutlineMismatch, Message: "tree-sitter could not parse the file"}}
	}
	defer tree.Close()

	root := tree.RootNode()
	var out []Diagnostic
	if root.HasError() {
		span := nodeSpan(root)
		if bad := firstErrorNode(root); bad != nil {
			span = nodeSpan(bad)
		}
		out = append(out, Diagnostic{
			Kind:    DiagOutlineMismatch,
			Message: "tree-sitter reports a syntax error the symbol parser accepted",
			Span:    span,
		})
	}

	ctx := &outlineContext{source: src}
	v.walker.walk(ctx, root)
	return append(out, compareOutlines(outlineOf(file), ctx.entries)...)
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.Kind() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if bad := firstErrorNode(node.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func outlineOf(file *SourceFile) []outlineEntry {
	var out []outlineEntry
	for _, sym := range file.Symbols {
		meta := sym.Meta()
		entry := outlineEntry{kind: sym.Kind(), name: meta.Name, span: meta.Span}
		if c, ok := sym.(*Class); ok {
			for _, m := range c.Members {
				entry.members = append(entry.members, m.Name)
			}
		}
		out = append(out, entry)
	}
	return out
}

// compareOutlines reports the first top-level divergence and, for classes
// that line up, the first member divergence of each.
func compareOutlines(ours, theirs []outlineEntry) []Diagnostic {
	var out []Diagnostic
	for i := 0; i < max(len(ours), len(theirs)); i++ {
		switch {
		case i >= len(theirs):
			return append(out, mismatch(ours[i].span, "symbol parser found %s, tree-sitter found nothing", ours[i]))
		case i >= len(ours):
			return append(out, mismatch(theirs[i].span, "tree-sitter found %s, symbol parser found nothing", theirs[i]))
		case ours[i].kind != theirs[i].kind || ours[i].name != theirs[i].name:
			return append(out, mismatch(ours[i].span, "symbol parser found %s, tree-sitter found %s", ours[i], theirs[i]))
		}
		a, b := ours[i].members, theirs[i].members
		for j := 0; j < max(len(a), len(b)); j++ {
			if j < len(a) && j < len(b) && a[j] == b[j] {
				continue
			}
			out = append(out, mismatch(ours[i].span, "members of class %q differ at position %d: %s vs %s",
				ours[i].name, j, memberAt(a, j), memberAt(b, j)))
			break
		}
	}
	return out
}

func memberAt(members []string, i int) string {
	if i < len(members) {
		return members[i]
	}
	return "<none>"
}

func mismatch(span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: DiagOutlineMismatch, Message: fmt.Sprintf(format, args...), Span: span}
}
