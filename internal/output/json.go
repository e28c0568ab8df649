// # internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"

	"symtree/internal/core/ports"
	"symtree/internal/engine/manifest"
	"symtree/internal/engine/parser"
)

// Report is the JSON document written for a snapshot. Type references are
// expanded into TypeReport trees so consumers need no annotation parser.
type Report struct {
	RunID        string                `json:"run_id,omitempty"`
	Root         string                `json:"root,omitempty"`
	Summary      Summary               `json:"summary"`
	Files        []FileReport          `json:"files"`
	Failures     []ports.Failure       `json:"failures,omitempty"`
	Dependencies []manifest.Dependency `json:"dependencies,omitempty"`
}

type Summary struct {
	Files       int `json:"files"`
	Failed      int `json:"failed"`
	Classes     int `json:"classes"`
	Functions   int `json:"functions"`
	Methods     int `json:"methods"`
	Diagnostics int `json:"diagnostics"`
}

type FileReport struct {
	Path        string              `json:"path"`
	Module      string              `json:"module"`
	Doc         string              `json:"doc,omitempty"`
	Imports     []parser.Import     `json:"imports,omitempty"`
	Symbols     []SymbolReport      `json:"symbols"`
	Diagnostics []parser.Diagnostic `json:"diagnostics,omitempty"`
}

// SymbolReport flattens both symbol variants; Kind says which fields apply.
type SymbolReport struct {
	Kind       parser.SymbolKind     `json:"kind"`
	Name       string                `json:"name"`
	Doc        string                `json:"doc,omitempty"`
	Decorators []parser.DecoratorRef `json:"decorators,omitempty"`
	Span       parser.Span           `json:"span"`
	Private    bool                  `json:"private,omitempty"`
	TypeParams string                `json:"type_params,omitempty"`

	Signature string        `json:"signature,omitempty"`
	Params    []ParamReport `json:"params,omitempty"`
	Returns   *TypeReport   `json:"returns,omitempty"`
	Async     bool          `json:"async,omitempty"`
	Role      parser.Role   `json:"role,omitempty"`
	Getter    string        `json:"getter,omitempty"`

	Bases               []string       `json:"bases,omitempty"`
	Keywords            []string       `json:"keywords,omitempty"`
	MultipleInheritance bool           `json:"multiple_inheritance,omitempty"`
	Diamonds            []string       `json:"diamonds,omitempty"`
	Members             []SymbolReport `json:"members,omitempty"`
}

type ParamReport struct {
	Name               string      `json:"name"`
	Annotation         *TypeReport `json:"annotation,omitempty"`
	HasDefault         bool        `json:"has_default,omitempty"`
	Default            string      `json:"default,omitempty"`
	VariadicPositional bool        `json:"variadic_positional,omitempty"`
	VariadicKeyword    bool        `json:"variadic_keyword,omitempty"`
}

// TypeReport is a TypeRef tree. Text is the canonical rendering.
type TypeReport struct {
	Kind         string       `json:"kind"`
	Name         string       `json:"name,omitempty"`
	Args         []TypeReport `json:"args,omitempty"`
	Alternatives []TypeReport `json:"alternatives,omitempty"`
	Inner        *TypeReport  `json:"inner,omitempty"`
	Text         string       `json:"text"`
}

type JSONGenerator struct{}

func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

func (g *JSONGenerator) Name() string { return "json" }

func (g *JSONGenerator) Generate(s ports.Snapshot) (string, error) {
	data, err := json.MarshalIndent(BuildReport(s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data) + "\n", nil
}

func BuildReport(s ports.Snapshot) Report {
	r := Report{
		RunID:        s.RunID,
		Root:         s.Root,
		Files:        make([]FileReport, 0, len(s.Files)),
		Failures:     s.Failures,
		Dependencies: s.Dependencies,
	}
	r.Summary.Files = len(s.Files)
	r.Summary.Failed = len(s.Failures)

	for _, f := range s.Files {
		fr := FileReport{
			Path:        f.Path,
			Module:      f.Module,
			Doc:         f.Doc,
			Imports:     f.Imports,
			Symbols:     make([]SymbolReport, 0, len(f.Symbols)),
			Diagnostics: f.Diagnostics,
		}
		for _, sym := range f.Symbols {
			switch v := sym.(type) {
			case *parser.Function:
				fr.Symbols = append(fr.Symbols, functionReport(v))
				r.Summary.Functions++
			case *parser.Class:
				fr.Symbols = append(fr.Symbols, classReport(v))
				r.Summary.Classes++
				r.Summary.Methods += len(v.Members)
			}
		}
		r.Summary.Diagnostics += len(f.Diagnostics)
		r.Files = append(r.Files, fr)
	}
	return r
}

func functionReport(fn *parser.Function) SymbolReport {
	sr := SymbolReport{
		Kind:       parser.KindFunction,
		Name:       fn.Name,
		Doc:        fn.Doc,
		Decorators: fn.Decorators,
		Span:       fn.Span,
		Private:    fn.IsPrivate(),
		TypeParams: fn.TypeParams,
		Signature:  fn.Signature(),
		Returns:    typeReport(fn.Returns),
		Async:      fn.IsAsync,
		Role:       fn.Role,
		Getter:     fn.GetterName,
	}
	for _, p := range fn.Params {
		sr.Params = append(sr.Params, ParamReport{
			Name:               p.Name,
			Annotation:         typeReport(p.Annotation),
			HasDefault:         p.HasDefault,
			Default:            p.Default,
			VariadicPositional: p.VariadicPositional,
			VariadicKeyword:    p.VariadicKeyword,
		})
	}
	return sr
}

func classReport(c *parser.Class) SymbolReport {
	sr := SymbolReport{
		Kind:                parser.KindClass,
		Name:                c.Name,
		Doc:                 c.Doc,
		Decorators:          c.Decorators,
		Span:                c.Span,
		Private:             c.IsPrivate(),
		TypeParams:          c.TypeParams,
		Signature:           c.Signature(),
		Bases:               c.Bases,
		Keywords:            c.Keywords,
		MultipleInheritance: c.HasMultipleInheritance(),
		Diamonds:            c.Diamonds,
	}
	for _, m := range c.Members {
		sr.Members = append(sr.Members, functionReport(m))
	}
	return sr
}

func typeReport(t parser.TypeRef) *TypeReport {
	if t == nil {
		return nil
	}
	tr := &TypeReport{Text: t.String()}
	switch v := t.(type) {
	case parser.Simple:
		tr.Kind, tr.Name = "simple", v.Name
	case parser.Generic:
		tr.Kind, tr.Name = "generic", v.Name
		for _, a := range v.Args {
			tr.Args = append(tr.Args, *typeReport(a))
		}
	case parser.Union:
		tr.Kind = "union"
		for _, a := range v.Alternatives {
			tr.Alternatives = append(tr.Alternatives, *typeReport(a))
		}
	case parser.Optional:
		tr.Kind = "optional"
		tr.Inner = typeReport(v.Inner)
	}
	return tr
}
