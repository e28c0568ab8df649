// # internal/output/output_test.go
package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/engine/manifest"
	"symtree/internal/engine/parser"
)

const zooSrc = `"""Zoo."""
from typing import Optional

class Animal:
    pass

class Walker(Animal):
    pass

class Swimmer(Animal):
    pass

class Duck(Walker, Swimmer, Flyer):
    """A duck."""

    def __init__(self, name: str, age: int = 1):
        self.name = name

    @property
    def age(self) -> int:
        return self._age

    @age.setter
    def age(self, value: int) -> None:
        self._age = value

    @property
    def kind(self) -> str:
        return "duck"

    @staticmethod
    def create(*args, **kw) -> "Duck":
        return Duck(*args)

    async def __quack(self, times: Optional[int] = None) -> Dict[str, List[int]]:
        pass

def feed(duck: Duck) -> None:
    pass
`

func testSnapshot(t *testing.T) ports.Snapshot {
	t.Helper()
	file, err := parser.NewParser(parser.Options{}).ParseFile("zoo/zoo.py", []byte(zooSrc))
	require.NoError(t, err)
	return ports.Snapshot{
		RunID: "run-1",
		Root:  "/proj",
		Files: []*parser.SourceFile{file},
		Failures: []ports.Failure{{
			Path: "zoo/broken.py", Code: errors.CodeParseError, Message: "expected ')'",
			Span: parser.Span{Start: parser.Position{Line: 4, Column: 12}, End: parser.Position{Line: 4, Column: 13}},
		}},
		Dependencies: []manifest.Dependency{{Name: "attrs", Version: "*", Scope: manifest.ScopeRuntime, Source: manifest.SourceRequirements}},
	}
}

func TestJSONGenerator(t *testing.T) {
	out, err := NewJSONGenerator().Generate(testSnapshot(t))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, Summary{Files: 1, Failed: 1, Classes: 4, Functions: 1, Methods: 6}, report.Summary)
	require.Len(t, report.Files, 1)
	file := report.Files[0]
	assert.Equal(t, "zoo", file.Module)
	assert.Equal(t, "Zoo.", file.Doc)
	require.Len(t, file.Symbols, 5)

	duck := file.Symbols[3]
	assert.Equal(t, parser.KindClass, duck.Kind)
	assert.Equal(t, []string{"Walker", "Swimmer", "Flyer"}, duck.Bases)
	assert.True(t, duck.MultipleInheritance)
	assert.Equal(t, []string{"Animal"}, duck.Diamonds)

	quack := duck.Members[5]
	assert.True(t, quack.Async)
	assert.True(t, quack.Private)
	require.NotNil(t, quack.Params[1].Annotation)
	assert.Equal(t, "optional", quack.Params[1].Annotation.Kind)
	assert.Equal(t, "int", quack.Params[1].Annotation.Inner.Name)
	require.NotNil(t, quack.Returns)
	assert.Equal(t, "generic", quack.Returns.Kind)
	assert.Equal(t, "Dict[str, List[int]]", quack.Returns.Text)
	assert.Equal(t, "List", quack.Returns.Args[1].Name)

	setter := duck.Members[2]
	assert.Equal(t, parser.RolePropertySetter, setter.Role)
	assert.Equal(t, "age", setter.Getter)

	assert.Equal(t, errors.CodeParseError, report.Failures[0].Code)
	assert.Equal(t, "attrs", report.Dependencies[0].Name)
}

func TestTSVGenerator(t *testing.T) {
	out, err := NewTSVGenerator().Generate(testSnapshot(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1+4+6+1+1)
	assert.True(t, strings.HasPrefix(lines[0], "Kind\tQualifiedName\t"))

	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), 9, line)
	}
	assert.Contains(t, out, "class\tzoo.Duck\t\t\tclass Duck\tWalker,Swimmer,Flyer\tzoo/zoo.py\t")
	assert.Contains(t, out, "method\tzoo.Duck.create\tstaticmethod\tfalse\tdef create(*args, **kw) -> Duck\t\tzoo/zoo.py\t")
	assert.Contains(t, out, "function\tzoo.feed\tplain\tfalse\tdef feed(duck: Duck) -> None\t")
	assert.Equal(t, "error\t\tPARSE_ERROR\t\texpected ')'\t\tzoo/broken.py\t4\t4", lines[len(lines)-1])
}

func TestMermaidGenerator(t *testing.T) {
	out, err := NewMermaidGenerator().Generate(testSnapshot(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "classDiagram\n"))
	assert.Contains(t, out, "class zoo_module[\"zoo\"] {\n    <<module>>\n    +feed(duck: Duck) None\n  }")
	assert.Contains(t, out, "class zoo_Duck[\"Duck\"] {\n    <<diamond>>\n")
	assert.Contains(t, out, "    +age : int\n")
	assert.Contains(t, out, "    +kind : str [readonly]\n")
	assert.Contains(t, out, "    +__init__(name: str, age: int)\n")
	assert.Contains(t, out, "    +create(*args, **kw)$ Duck\n")
	assert.Contains(t, out, "    -async __quack(times: Optional~int~) Dict~str, List~int~~\n")
	assert.Contains(t, out, "  zoo_Animal <|-- zoo_Walker\n")
	assert.Contains(t, out, "  ext_Flyer <|-- zoo_Duck\n")
	assert.Contains(t, out, "  <<external>> ext_Flyer\n")
	assert.NotContains(t, out, "+age(")
}

func TestPlantUMLGenerator(t *testing.T) {
	out, err := NewPlantUMLGenerator().Generate(testSnapshot(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "@startuml\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
	assert.Contains(t, out, "package \"zoo/zoo.py\" {\n")
	assert.Contains(t, out, "class \"zoo\" as zoo_module << (M,#DDEEFF) module >> {\n    + feed(duck: Duck) : None\n")
	assert.Contains(t, out, "class \"Duck\" as zoo_Duck <<diamond>> {\n")
	assert.Contains(t, out, "    + {field} kind : str {readOnly}\n")
	assert.Contains(t, out, "    + {static} create(*args, **kw) : Duck\n")
	assert.Contains(t, out, "    - async __quack(times: Optional[int]) : Dict[str, List[int]]\n")
	assert.Contains(t, out, "class \"Flyer\" as ext_Flyer <<external>>\n")
	assert.Contains(t, out, "zoo_Swimmer <|-- zoo_Duck\n")
}

func TestDOTGenerator(t *testing.T) {
	out, err := NewDOTGenerator().Generate(testSnapshot(t))
	require.NoError(t, err)

	assert.Contains(t, out, "digraph inheritance {")
	assert.Contains(t, out, "label=\"zoo/zoo.py\";")
	assert.Contains(t, out, "\"zoo_Duck\" [label=\"Duck\\n(6 members)\", color=\"red\", fontcolor=\"red\", xlabel=\"DIAMOND\"];")
	assert.Contains(t, out, "\"zoo_Walker\" -> \"zoo_Animal\";")
	assert.Contains(t, out, "\"zoo_Duck\" -> \"ext_Flyer\";")
	assert.Contains(t, out, "\"ext_Flyer\" [label=\"Flyer\", style=\"rounded,dashed\"];")
}

func TestMakeIDs(t *testing.T) {
	assert.Equal(t, []string{"a_b", "a_b_2", "n_1x", "n"}, makeIDs([]string{"a.b", "a-b", "1x", ""}))
}

func TestReportersShareInterface(t *testing.T) {
	reporters := []ports.Reporter{NewJSONGenerator(), NewTSVGenerator(), NewMermaidGenerator(), NewPlantUMLGenerator(), NewDOTGenerator()}
	names := make([]string, 0, len(reporters))
	for _, r := range reporters {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"json", "tsv", "mermaid", "plantuml", "dot"}, names)
}

func importSnapshot(t *testing.T) ports.Snapshot {
	t.Helper()
	p := parser.NewParser(parser.Options{})
	sources := []struct{ path, src string }{
		{"zoo/zoo.py", zooSrc},
		{"zoo/keeper.py", "import zoo\nfrom zoo import Duck\nimport os\nfrom util import helper\nfrom keeper import Keeper\n\nclass Keeper:\n    pass\n"},
		{"a/util.py", "x = 1\n"},
		{"b/util.py", "y = 2\n"},
	}
	snap := ports.Snapshot{RunID: "run-2", Root: "/proj"}
	for _, s := range sources {
		file, err := p.ParseFile(s.path, []byte(s.src))
		require.NoError(t, err)
		snap.Files = append(snap.Files, file)
	}
	return snap
}

func TestBuildDiagram_ImportEdges(t *testing.T) {
	d := buildDiagram(importSnapshot(t))

	// util is ambiguous, os is not scanned and keeper importing itself is dropped.
	require.Len(t, d.deps, 1)
	assert.Equal(t, dependencyEdge{from: "keeper_module", to: "zoo_module"}, d.deps[0])
	assert.True(t, d.modules[0].linked)
	assert.True(t, d.modules[1].linked)
	assert.False(t, d.modules[2].showModule())
	assert.Equal(t, "util_module_2", d.modules[3].id)
}

func TestDiagramGenerators_ImportEdges(t *testing.T) {
	snap := importSnapshot(t)

	mermaid, err := NewMermaidGenerator().Generate(snap)
	require.NoError(t, err)
	assert.Contains(t, mermaid, "class keeper_module[\"keeper\"] {\n    <<module>>\n  }")
	assert.Contains(t, mermaid, "  keeper_module ..> zoo_module : imports\n")
	assert.NotContains(t, mermaid, "util_module")

	plantuml, err := NewPlantUMLGenerator().Generate(snap)
	require.NoError(t, err)
	assert.Contains(t, plantuml, "class \"keeper\" as keeper_module << (M,#DDEEFF) module >> {\n  }")
	assert.Contains(t, plantuml, "keeper_module ..> zoo_module : imports\n")

	dot, err := NewDOTGenerator().Generate(snap)
	require.NoError(t, err)
	assert.Contains(t, dot, "    \"keeper_module\" [label=\"keeper\", shape=folder];\n")
	assert.Contains(t, dot, "  \"keeper_module\" -> \"zoo_module\" [style=dashed, arrowhead=vee, label=\"imports\"];\n")
	assert.Equal(t, 1, strings.Count(dot, "label=\"imports\""))
	assert.NotContains(t, dot, "a/util.py")
}
