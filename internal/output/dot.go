// # internal/output/dot.go
package output

import (
	"fmt"
	"strings"

	"symtree/internal/core/ports"
)

// DOTGenerator renders one cluster per file with edges from class to base.
// Imports between scanned files add a folder node per module and a dashed
// edge to the imported module.
type DOTGenerator struct{}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

func (d *DOTGenerator) Name() string { return "dot" }

func (d *DOTGenerator) Generate(s ports.Snapshot) (string, error) {
	dg := buildDiagram(s)

	var buf strings.Builder
	buf.WriteString("digraph inheritance {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [arrowhead=empty, penwidth=1.2];\n\n")

	for i, mod := range dg.modules {
		if len(mod.classes) == 0 && !mod.linked {
			continue
		}
		buf.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
		buf.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOT(mod.file.Path)))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		if mod.linked {
			buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", shape=folder];\n", mod.id, escapeDOT(mod.file.Module)))
		}
		for _, dc := range mod.classes {
			attrs := fmt.Sprintf("label=\"%s\\n(%d members)\"", escapeDOT(dc.class.Name), len(dc.class.Members))
			if dc.diamond {
				attrs += ", color=\"red\", fontcolor=\"red\", xlabel=\"DIAMOND\""
			}
			buf.WriteString(fmt.Sprintf("    \"%s\" [%s];\n", dc.id, attrs))
		}
		buf.WriteString("  }\n")
	}

	for _, name := range dg.externals {
		buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", style=\"rounded,dashed\"];\n", dg.externalIDs[name], escapeDOT(name)))
	}
	buf.WriteString("\n")
	for _, e := range dg.edges {
		buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", e.from, e.to))
	}
	for _, e := range dg.deps {
		buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=dashed, arrowhead=vee, label=\"imports\"];\n", e.from, e.to))
	}
	buf.WriteString("}\n")

	return buf.String(), nil
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
