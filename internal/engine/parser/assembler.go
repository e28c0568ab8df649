package parser

import (
	"path/filepath"
	"strings"
)

// assemble turns the parse tree into the SourceFile handed to callers.
// Declaration order is kept at every level and every warning collected so
// far is attached to the file.
func assemble(path string, m *moduleNode, diags *diagnostics) *SourceFile {
	file := &SourceFile{
		Path:    path,
		Module:  ModuleName(path),
		Doc:     m.doc,
		Imports: m.imports,
	}

	ig := newInheritanceGraph()
	for _, d := range m.decls {
		if d.fn != nil {
			file.Symbols = append(file.Symbols, buildFunction(d.fn, nil, diags))
			continue
		}
		c := buildClass(d.class, diags)
		ig.add(c, d.class, diags)
		file.Symbols = append(file.Symbols, c)
	}

	file.Diagnostics = diags.sorted()
	return file
}

func buildClass(node *classNode, diags *diagnostics) *Class {
	c := &Class{
		SymbolMeta: SymbolMeta{
			Name:       node.name,
			Doc:        node.doc,
			Decorators: resolveClassDecorators(node.decorators),
			TypeParams: node.typeParams,
			Span:       node.span,
		},
		Keywords: node.keywords,
	}
	for _, b := range node.bases {
		c.Bases = append(c.Bases, b.text)
	}
	for _, member := range node.members {
		c.Members = append(c.Members, buildFunction(member, c, diags))
	}
	return c
}

func buildFunction(node *funcNode, owner *Class, diags *diagnostics) *Function {
	fn := &Function{
		SymbolMeta: SymbolMeta{
			Name:       node.name,
			Doc:        node.doc,
			TypeParams: node.typeParams,
			Span:       node.span,
		},
		IsAsync:  node.isAsync,
		IsMethod: owner != nil,
	}
	for _, p := range node.params {
		fn.Params = append(fn.Params, Parameter{
			Name:               p.name,
			Annotation:         normalizeNode(p.annotation, diags),
			HasDefault:         p.hasDefault,
			Default:            p.defaultText,
			VariadicPositional: p.variadicPositional,
			VariadicKeyword:    p.variadicKeyword,
		})
	}
	fn.Returns = normalizeNode(node.returns, diags)
	resolveFunction(fn, node, owner, diags)
	return fn
}

func normalizeNode(a *annotationNode, diags *diagnostics) TypeRef {
	if a == nil {
		return nil
	}
	t, ok := NormalizeAnnotation(a.text)
	if !ok {
		diags.add(DiagUnrecognizedAnnotation, a.span, "annotation %q is not a recognized type shape; kept as text", t.String())
	}
	return t
}

// ModuleName is the file's base name without extension; a package
// initializer takes the name of its directory.
func ModuleName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "__init__" {
		if dir := filepath.Base(filepath.Dir(path)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	return name
}
