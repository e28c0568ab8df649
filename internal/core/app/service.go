package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/engine/manifest"
	"symtree/internal/shared/observability"
)

// RunScan discovers files under the configured scan paths, parses them,
// reads the project's dependency manifest, persists the run and writes every
// configured report. A fatal error in one file is recorded as a failure and
// the batch goes on unless batch.fail_fast is set.
func (a *App) RunScan(ctx context.Context) (ports.ScanResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "app.RunScan")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}
	started := time.Now()

	files, err := a.ScanDirectories(a.Paths.ScanPaths)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "scan_directories")
	}
	slog.Debug("discovered source files", "count", len(files))

	results, err := a.ParseBatch(ctx, files)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "parse_batch")
	}

	snapshot := ports.Snapshot{Root: a.Paths.ProjectRoot, StartedAt: started}
	for _, r := range results {
		if r.Failure != nil {
			snapshot.Failures = append(snapshot.Failures, *r.Failure)
			slog.Warn("file skipped", "path", r.Path, "code", r.Failure.Code, "error", r.Failure.Message,
				"line", r.Failure.Span.Start.Line)
			continue
		}
		snapshot.Files = append(snapshot.Files, r.File)
	}

	deps, err := manifest.Extract(a.Paths.ProjectRoot)
	if err != nil {
		slog.Warn("failed to read dependency manifest", "root", a.Paths.ProjectRoot, "error", err)
	}
	snapshot.Dependencies = deps
	snapshot.FinishedAt = time.Now()

	runID, err := a.saveSnapshot(ctx, snapshot)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "save_run")
	}
	snapshot.RunID = runID
	a.setSnapshot(snapshot)

	written, err := a.writeReports(snapshot)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "write_reports")
	}

	result := ports.ScanResult{
		RunID:    runID,
		Files:    len(snapshot.Files),
		Failed:   len(snapshot.Failures),
		Written:  written,
		Duration: time.Since(started),
	}
	for _, f := range snapshot.Files {
		result.Symbols += len(f.Symbols)
		result.Warnings += len(f.Diagnostics)
	}
	span.SetAttributes(
		attribute.Int("scan.files", result.Files),
		attribute.Int("scan.failed", result.Failed),
		attribute.Int("scan.symbols", result.Symbols),
	)
	return result, nil
}
