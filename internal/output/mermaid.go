package output

import (
	"fmt"
	"strings"

	"symtree/internal/core/ports"
	"symtree/internal/engine/parser"
)

// MermaidGenerator renders a classDiagram. Each file contributes a
// <<module>> node when it has module-level functions or takes part in an
// import between scanned files.
type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

func (m *MermaidGenerator) Name() string { return "mermaid" }

func (m *MermaidGenerator) Generate(s ports.Snapshot) (string, error) {
	d := buildDiagram(s)

	var b strings.Builder
	b.WriteString("classDiagram\n")
	b.WriteString("  direction BT\n")

	for _, mod := range d.modules {
		if mod.showModule() {
			b.WriteString(fmt.Sprintf("  class %s[\"%s\"] {\n", mod.id, escapeMermaidLabel(mod.file.Module)))
			b.WriteString("    <<module>>\n")
			for _, fn := range mod.functions {
				b.WriteString("    " + mermaidMethod(fn) + "\n")
			}
			b.WriteString("  }\n")
		}
		for _, dc := range mod.classes {
			c := dc.class
			b.WriteString(fmt.Sprintf("  class %s[\"%s\"] {\n", dc.id, escapeMermaidLabel(c.Name)))
			if dc.diamond {
				b.WriteString("    <<diamond>>\n")
			}
			for _, p := range c.Properties() {
				b.WriteString("    " + mermaidProperty(p) + "\n")
			}
			for _, fn := range c.Members {
				if fn.Role == parser.RoleProperty || fn.Role == parser.RolePropertySetter {
					continue
				}
				b.WriteString("    " + mermaidMethod(fn) + "\n")
			}
			b.WriteString("  }\n")
		}
	}

	for _, name := range d.externals {
		b.WriteString(fmt.Sprintf("  class %s[\"%s\"]\n", d.externalIDs[name], escapeMermaidLabel(name)))
		b.WriteString(fmt.Sprintf("  <<external>> %s\n", d.externalIDs[name]))
	}

	if len(d.edges) > 0 || len(d.deps) > 0 {
		b.WriteString("\n")
	}
	for _, e := range d.edges {
		b.WriteString(fmt.Sprintf("  %s <|-- %s\n", e.to, e.from))
	}
	for _, e := range d.deps {
		b.WriteString(fmt.Sprintf("  %s ..> %s : imports\n", e.from, e.to))
	}

	return b.String(), nil
}

func mermaidMethod(fn *parser.Function) string {
	var b strings.Builder
	b.WriteString(visibility(fn.IsPrivate()))
	if fn.IsAsync {
		b.WriteString("async ")
	}
	b.WriteString(fn.Name)
	b.WriteString("(" + mermaidType(paramList(fn, true)) + ")")
	if fn.Role == parser.RoleStaticMethod || fn.Role == parser.RoleClassMethod {
		b.WriteString("$")
	}
	if ret := typeText(fn.Returns); ret != "" {
		b.WriteString(" " + mermaidType(ret))
	}
	return b.String()
}

func mermaidProperty(p parser.Property) string {
	line := visibility(p.Getter.IsPrivate()) + p.Name
	if ret := typeText(p.Getter.Returns); ret != "" {
		line += " : " + mermaidType(ret)
	}
	if len(p.Setters) == 0 {
		line += " [readonly]"
	}
	return line
}

// mermaidType swaps subscript brackets for Mermaid's ~generic~ markers.
func mermaidType(s string) string {
	return strings.NewReplacer("[", "~", "]", "~").Replace(s)
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
