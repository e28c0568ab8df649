// # internal/output/tsv.go
package output

import (
	"fmt"
	"strings"

	"symtree/internal/core/ports"
	"symtree/internal/engine/parser"
)

// TSVGenerator writes one row per symbol, methods included, followed by one
// row per fatal file failure.
type TSVGenerator struct{}

func NewTSVGenerator() *TSVGenerator {
	return &TSVGenerator{}
}

func (t *TSVGenerator) Name() string { return "tsv" }

func (t *TSVGenerator) Generate(s ports.Snapshot) (string, error) {
	var buf strings.Builder

	buf.WriteString("Kind\tQualifiedName\tRole\tAsync\tSignature\tBases\tFile\tStartLine\tEndLine\n")
	for _, f := range s.Files {
		for _, sym := range f.Symbols {
			switch v := sym.(type) {
			case *parser.Function:
				writeFunctionRow(&buf, f, v, f.Module+"."+v.Name)
			case *parser.Class:
				buf.WriteString(fmt.Sprintf("class\t%s\t\t\t%s\t%s\t%s\t%d\t%d\n",
					f.Module+"."+v.Name,
					tsvField(v.Signature()),
					tsvField(strings.Join(v.Bases, ",")),
					f.Path,
					v.Span.Start.Line,
					v.Span.End.Line,
				))
				for _, m := range v.Members {
					writeFunctionRow(&buf, f, m, f.Module+"."+v.Name+"."+m.Name)
				}
			}
		}
	}
	for _, failure := range s.Failures {
		buf.WriteString(fmt.Sprintf("error\t\t%s\t\t%s\t\t%s\t%d\t%d\n",
			failure.Code,
			tsvField(failure.Message),
			failure.Path,
			failure.Span.Start.Line,
			failure.Span.End.Line,
		))
	}

	return buf.String(), nil
}

func writeFunctionRow(buf *strings.Builder, f *parser.SourceFile, fn *parser.Function, qualified string) {
	kind := "function"
	if fn.IsMethod {
		kind = "method"
	}
	buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%t\t%s\t\t%s\t%d\t%d\n",
		kind,
		qualified,
		fn.Role,
		fn.IsAsync,
		tsvField(fn.Signature()),
		f.Path,
		fn.Span.Start.Line,
		fn.Span.End.Line,
	))
}

// tsvField keeps a value on one line and inside one column.
func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}
