package parser

// The parse tree produced by the construct parser. Decorators are attached
// but unresolved and annotations are still raw text; the assembler turns
// these nodes into Symbols.

type moduleNode struct {
	doc     string
	decls   []declNode
	imports []Import
}

// declNode is exactly one of fn or class.
type declNode struct {
	fn    *funcNode
	class *classNode
}

func (d declNode) name() string {
	if d.fn != nil {
		return d.fn.name
	}
	return d.class.name
}

type decoratorNode struct {
	raw     string
	name    string
	args    string
	hasArgs bool
	span    Span
}

type funcNode struct {
	name       string
	typeParams string
	isAsync    bool
	decorators []decoratorNode
	params     []paramNode
	returns    *annotationNode
	doc        string
	span       Span
}

type paramNode struct {
	name               string
	annotation         *annotationNode
	hasDefault         bool
	defaultText        string
	variadicPositional bool
	variadicKeyword    bool
}

type annotationNode struct {
	text string
	span Span
}

type baseNode struct {
	text string
	span Span
}

type classNode struct {
	name       string
	typeParams string
	decorators []decoratorNode
	bases      []baseNode
	keywords   []string
	doc        string
	members    []*funcNode
	span       Span
}
