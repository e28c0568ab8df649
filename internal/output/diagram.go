package output

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"symtree/internal/core/ports"
	"symtree/internal/engine/parser"
)

// diagram is the class-level view shared by the Mermaid, PlantUML and DOT
// generators. Base names that do not resolve to an earlier class of the same
// file become external nodes keyed by name. Imports that name another file of
// the snapshot become dependency edges between module nodes.
type diagram struct {
	modules     []diagramModule
	externals   []string
	externalIDs map[string]string
	edges       []inheritanceEdge
	deps        []dependencyEdge
}

type diagramModule struct {
	file      *parser.SourceFile
	id        string
	classes   []diagramClass
	functions []*parser.Function
	// linked is set when the module takes part in a dependency edge.
	linked bool
}

// showModule reports whether the module gets its own node.
func (m diagramModule) showModule() bool {
	return len(m.functions) > 0 || m.linked
}

type diagramClass struct {
	id    string
	class *parser.Class
	// diamond is true when the class reaches a same-file ancestor through
	// more than one base.
	diamond bool
}

// inheritanceEdge points from a class to one of its bases.
type inheritanceEdge struct {
	from string
	to   string
}

// dependencyEdge points from an importing module to the imported one.
type dependencyEdge struct {
	from string
	to   string
}

func buildDiagram(s ports.Snapshot) diagram {
	var names []string
	for _, f := range s.Files {
		names = append(names, f.Module+"_module")
		for _, c := range f.Classes() {
			names = append(names, f.Module+"."+c.Name)
		}
	}
	ids := makeIDs(names)

	d := diagram{externalIDs: make(map[string]string)}
	external := make(map[string]bool)
	i := 0
	for _, f := range s.Files {
		mod := diagramModule{file: f, id: ids[i], functions: f.Functions()}
		i++
		classIDs := make(map[*parser.Class]string)
		for _, c := range f.Classes() {
			classIDs[c] = ids[i]
			mod.classes = append(mod.classes, diagramClass{id: ids[i], class: c, diamond: len(c.Diamonds) > 0})
			i++
		}
		for _, dc := range mod.classes {
			for _, link := range dc.class.BaseLinks {
				switch {
				case link.SelfReference:
					continue
				case link.Local != nil:
					d.edges = append(d.edges, inheritanceEdge{from: dc.id, to: classIDs[link.Local]})
				default:
					external[link.Name] = true
					d.edges = append(d.edges, inheritanceEdge{from: dc.id, to: "ext:" + link.Name})
				}
			}
		}
		d.modules = append(d.modules, mod)
	}

	for name := range external {
		d.externals = append(d.externals, name)
	}
	sort.Strings(d.externals)
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[id] = true
	}
	for _, name := range d.externals {
		id := "ext_" + sanitizeID(name)
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("ext_%s_%d", sanitizeID(name), n)
		}
		taken[id] = true
		d.externalIDs[name] = id
	}
	for k, e := range d.edges {
		if name, ok := strings.CutPrefix(e.to, "ext:"); ok {
			d.edges[k].to = d.externalIDs[name]
		}
	}
	d.linkImports()
	return d
}

// linkImports resolves each import against the module names of the snapshot.
// A `from` import may name a submodule in its items, so those are tried too.
// Names shared by several files are skipped since the target is ambiguous.
func (d *diagram) linkImports() {
	byName := make(map[string][]int, len(d.modules))
	for i, m := range d.modules {
		byName[m.file.Module] = append(byName[m.file.Module], i)
	}
	seen := make(map[dependencyEdge]bool)
	for i := range d.modules {
		from := &d.modules[i]
		for _, imp := range from.file.Imports {
			for _, name := range importedNames(imp) {
				targets := byName[name]
				if len(targets) != 1 || targets[0] == i {
					continue
				}
				to := &d.modules[targets[0]]
				e := dependencyEdge{from: from.id, to: to.id}
				if seen[e] {
					continue
				}
				seen[e] = true
				from.linked, to.linked = true, true
				d.deps = append(d.deps, e)
			}
		}
	}
}

func importedNames(imp parser.Import) []string {
	var names []string
	if imp.Module != "" {
		parts := strings.Split(imp.Module, ".")
		names = append(names, parts[len(parts)-1])
	}
	for _, it := range imp.Items {
		if it.Name != "*" {
			names = append(names, it.Name)
		}
	}
	return names
}

// makeIDs returns one identifier per name, in order, deduplicated with a
// numeric suffix.
func makeIDs(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]int, len(names))
	for i, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			out[i] = base
			continue
		}
		out[i] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return out
}

func sanitizeID(name string) string {
	if name == "" {
		return "n"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "n_" + out
	}
	return out
}

func visibility(private bool) string {
	if private {
		return "-"
	}
	return "+"
}

// paramList renders parameters without defaults, which diagrams do not need.
func paramList(fn *parser.Function, skipReceiver bool) string {
	params := fn.Params
	if skipReceiver && fn.IsMethod && fn.Role != parser.RoleStaticMethod && len(params) > 0 &&
		!params[0].VariadicPositional && !params[0].VariadicKeyword {
		params = params[1:]
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		q := p
		q.HasDefault, q.Default = false, ""
		parts = append(parts, q.String())
	}
	return strings.Join(parts, ", ")
}

func typeText(t parser.TypeRef) string {
	if t == nil {
		return ""
	}
	return t.String()
}
