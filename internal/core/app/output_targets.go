package app

import (
	"path/filepath"
	"strings"

	"symtree/internal/core/ports"
	"symtree/internal/output"
)

type reportTarget struct {
	reporter ports.Reporter
	path     string
}

// resolveOutputTargets pairs each configured report name with its
// generator. Relative names resolve against the output root.
func (a *App) resolveOutputTargets() []reportTarget {
	configured := []struct {
		name     string
		reporter ports.Reporter
	}{
		{a.Config.Output.JSON, output.NewJSONGenerator()},
		{a.Config.Output.TSV, output.NewTSVGenerator()},
		{a.Config.Output.Mermaid, output.NewMermaidGenerator()},
		{a.Config.Output.PlantUML, output.NewPlantUMLGenerator()},
		{a.Config.Output.DOT, output.NewDOTGenerator()},
	}

	var targets []reportTarget
	for _, c := range configured {
		name := strings.TrimSpace(c.name)
		if name == "" {
			continue
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.Paths.OutputRoot, path)
		}
		targets = append(targets, reportTarget{reporter: c.reporter, path: filepath.Clean(path)})
	}
	return targets
}
