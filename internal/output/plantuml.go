package output

import (
	"fmt"
	"strings"

	"symtree/internal/core/ports"
	"symtree/internal/engine/parser"
)

// PlantUMLGenerator renders one package per file with its classes, and a
// module stereotype class for module-level functions and imports.
type PlantUMLGenerator struct{}

func NewPlantUMLGenerator() *PlantUMLGenerator {
	return &PlantUMLGenerator{}
}

func (p *PlantUMLGenerator) Name() string { return "plantuml" }

func (p *PlantUMLGenerator) Generate(s ports.Snapshot) (string, error) {
	d := buildDiagram(s)

	var b strings.Builder
	b.WriteString("@startuml\n")
	b.WriteString("skinparam classAttributeIconSize 0\n")
	b.WriteString("skinparam packageStyle rectangle\n")
	b.WriteString("hide empty members\n\n")

	for _, mod := range d.modules {
		b.WriteString(fmt.Sprintf("package \"%s\" {\n", escapePlantUML(mod.file.Path)))
		if mod.showModule() {
			b.WriteString(fmt.Sprintf("  class \"%s\" as %s << (M,#DDEEFF) module >> {\n", escapePlantUML(mod.file.Module), mod.id))
			for _, fn := range mod.functions {
				b.WriteString("    " + plantUMLMethod(fn) + "\n")
			}
			b.WriteString("  }\n")
		}
		for _, dc := range mod.classes {
			c := dc.class
			stereo := ""
			if dc.diamond {
				stereo = " <<diamond>>"
			}
			b.WriteString(fmt.Sprintf("  class \"%s\" as %s%s {\n", escapePlantUML(c.Name), dc.id, stereo))
			for _, prop := range c.Properties() {
				b.WriteString("    " + plantUMLProperty(prop) + "\n")
			}
			for _, fn := range c.Members {
				if fn.Role == parser.RoleProperty || fn.Role == parser.RolePropertySetter {
					continue
				}
				b.WriteString("    " + plantUMLMethod(fn) + "\n")
			}
			b.WriteString("  }\n")
		}
		b.WriteString("}\n\n")
	}

	for _, name := range d.externals {
		b.WriteString(fmt.Sprintf("class \"%s\" as %s <<external>>\n", escapePlantUML(name), d.externalIDs[name]))
	}
	for _, e := range d.edges {
		b.WriteString(fmt.Sprintf("%s <|-- %s\n", e.to, e.from))
	}
	for _, e := range d.deps {
		b.WriteString(fmt.Sprintf("%s ..> %s : imports\n", e.from, e.to))
	}

	b.WriteString("@enduml\n")
	return b.String(), nil
}

func plantUMLMethod(fn *parser.Function) string {
	var b strings.Builder
	b.WriteString(visibility(fn.IsPrivate()) + " ")
	switch fn.Role {
	case parser.RoleStaticMethod, parser.RoleClassMethod:
		b.WriteString("{static} ")
	}
	if fn.IsAsync {
		b.WriteString("async ")
	}
	b.WriteString(fn.Name + "(" + paramList(fn, true) + ")")
	if ret := typeText(fn.Returns); ret != "" {
		b.WriteString(" : " + ret)
	}
	return b.String()
}

func plantUMLProperty(p parser.Property) string {
	line := visibility(p.Getter.IsPrivate()) + " {field} " + p.Name
	if ret := typeText(p.Getter.Returns); ret != "" {
		line += " : " + ret
	}
	if len(p.Setters) == 0 {
		line += " {readOnly}"
	}
	return line
}

func escapePlantUML(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
