package app

import (
	"fmt"
	"log/slog"

	"symtree/internal/core/ports"
	"symtree/internal/shared/util"
)

// writeReports renders every configured report and replaces each file
// atomically. It returns the paths written.
func (a *App) writeReports(s ports.Snapshot) ([]string, error) {
	written := make([]string, 0, len(a.reporters))
	for _, t := range a.reporters {
		content, err := t.reporter.Generate(s)
		if err != nil {
			return written, fmt.Errorf("generate %s report: %w", t.reporter.Name(), err)
		}
		if err := util.WriteFileAtomic(t.path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("write %s report: %w", t.reporter.Name(), err)
		}
		slog.Debug("report written", "format", t.reporter.Name(), "path", t.path)
		written = append(written, t.path)
	}
	return written, nil
}
