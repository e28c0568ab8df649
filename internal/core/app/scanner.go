package app

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/engine/parser"
	"symtree/internal/shared/observability"
	"symtree/internal/shared/util"
)

// ScanDirectories returns every supported source file under paths, sorted
// and without duplicates. Excluded directories are not descended into.
func (a *App) ScanDirectories(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeNotFound, "scan path "+root)
		}
		if !info.IsDir() {
			if a.acceptFile(root) && !seen[root] {
				seen[root] = true
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && a.excludedDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if a.acceptFile(path) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (a *App) excludedDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range a.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (a *App) acceptFile(path string) bool {
	if !a.codeParser.IsSupportedPath(path) {
		return false
	}
	if !a.Config.Languages.Python.IncludeTests && a.codeParser.IsTestFile(path) {
		return false
	}
	base := filepath.Base(path)
	for _, g := range a.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}

// FileResult is the outcome of parsing one file: exactly one of File and
// Failure is set.
type FileResult struct {
	Path    string
	File    *parser.SourceFile
	Failure *ports.Failure
}

// ParseBatch parses files on a bounded worker pool and returns results in
// input order. Dispatch stops when ctx is cancelled or, with fail_fast, after
// the first fatal file error; files never dispatched have no result. The
// returned error is ctx's error or the first failure under fail_fast.
func (a *App) ParseBatch(ctx context.Context, files []string) ([]FileResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.files", len(files)))

	start := time.Now()
	defer func() { observability.BatchDuration.Observe(time.Since(start).Seconds()) }()

	workers := a.Config.Batch.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]FileResult, len(files))
	dispatched := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		if err := a.limiter.Wait(gctx); err != nil {
			break
		}
		dispatched[i] = true
		g.Go(func() error {
			res := a.parseOne(gctx, path)
			results[i] = res
			if res.Failure != nil && a.Config.Batch.FailFast {
				return errors.New(res.Failure.Code, res.Failure.Path+": "+res.Failure.Message)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	out := make([]FileResult, 0, len(files))
	for i, ok := range dispatched {
		if ok {
			out = append(out, results[i])
		}
	}
	span.SetAttributes(attribute.Int("batch.dispatched", len(out)))

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return out, err
	}
	if groupErr != nil {
		span.RecordError(groupErr)
		span.SetStatus(codes.Error, "fail fast")
		return out, groupErr
	}
	return out, nil
}

// parseOne reads and parses one file. The SourceFile path is relative to
// the project root in slash form.
func (a *App) parseOne(ctx context.Context, path string) FileResult {
	rel := util.RelativeTo(a.Paths.ProjectRoot, path)
	_, span := observability.Tracer().Start(ctx, "parse_file")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", rel))

	start := time.Now()
	content, err := os.ReadFile(path)
	if err != nil {
		observability.FilesParsedTotal.WithLabelValues(observability.OutcomeReadError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return FileResult{Path: rel, Failure: &ports.Failure{Path: rel, Code: errors.CodeInternal, Message: err.Error()}}
	}

	file, err := a.codeParser.ParseFile(rel, content)
	if err != nil {
		outcome := observability.OutcomeParseError
		if errors.IsCode(err, errors.CodeLexError) {
			outcome = observability.OutcomeLexError
		}
		observability.ParsingDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		observability.FilesParsedTotal.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return FileResult{Path: rel, Failure: failureFor(rel, err)}
	}

	observability.ParsingDuration.WithLabelValues(observability.OutcomeOK).Observe(time.Since(start).Seconds())
	observability.FilesParsedTotal.WithLabelValues(observability.OutcomeOK).Inc()
	for _, sym := range file.Symbols {
		observability.SymbolsExtractedTotal.WithLabelValues(string(sym.Kind())).Inc()
	}
	for _, d := range file.Diagnostics {
		observability.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}
	span.SetAttributes(
		attribute.Int("file.symbols", len(file.Symbols)),
		attribute.Int("file.diagnostics", len(file.Diagnostics)),
	)
	return FileResult{Path: rel, File: file}
}

func failureFor(path string, err error) *ports.Failure {
	f := &ports.Failure{Path: path, Code: errors.CodeOf(err), Message: err.Error()}
	switch e := err.(type) {
	case *parser.LexError:
		f.Message = e.Message
	case *parser.ParseError:
		f.Message = e.Message
	}
	if span, ok := parser.SpanOf(err); ok {
		f.Span = span
	}
	return f
}
