// # cmd/symtree/cli.go
package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"symtree/internal/core/config"
	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/data/store"
	"symtree/internal/engine/parser"
)

// loadConfig reads path when given, otherwise the default config files in
// cwd. Environment overrides are applied last and the result is validated
// again. The returned path is empty when built-in defaults were used.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	var (
		cfg    *config.Config
		loaded string
		err    error
	)
	if path != "" {
		cfg, err = config.Load(config.ResolveRelative(cwd, path))
		loaded = config.ResolveRelative(cwd, path)
	} else {
		cfg, loaded, err = config.LoadDefault(cwd)
	}
	if err != nil {
		return nil, "", err
	}

	config.ApplyEnvOverrides(cfg)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, "", stdErrors.Join(errs...)
	}
	return cfg, loaded, nil
}

type storeQuery struct {
	Lookup    string
	Importers string
	Runs      int
	Prune     int
}

// runStoreQuery answers lookup, importers, runs and prune requests from the symbol
// store without scanning.
func runStoreQuery(ctx context.Context, w io.Writer, cfg *config.Config, paths config.ResolvedPaths, q storeQuery) error {
	if !cfg.DB.IsEnabled() {
		return errors.New(errors.CodeValidationError, "symbol store is disabled (db.enabled = false)")
	}
	s, err := store.Open(paths.DBPath, cfg.DB.BusyTimeout)
	if err != nil {
		return err
	}
	defer s.Close()

	if q.Prune > 0 {
		removed, err := s.PruneRuns(ctx, q.Prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "pruned %d run(s), kept at most %d\n", removed, q.Prune)
	}
	if q.Runs > 0 {
		list, err := s.Runs(ctx, q.Runs)
		if err != nil {
			return err
		}
		io.WriteString(w, formatRuns(list))
	}
	if q.Lookup != "" {
		records, err := s.Lookup(ctx, q.Lookup)
		if err != nil {
			return err
		}
		io.WriteString(w, formatLookup(q.Lookup, records))
	}
	if q.Importers != "" {
		records, err := s.Importers(ctx, q.Importers)
		if err != nil {
			return err
		}
		io.WriteString(w, formatImporters(q.Importers, records))
	}
	return nil
}

func formatScanResult(r ports.ScanResult, failures []ports.Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d file(s) in %s: %d symbol(s), %d warning(s), %d failed\n",
		r.Files+r.Failed, r.Duration.Round(time.Millisecond), r.Symbols, r.Warnings, r.Failed)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	}
	for _, f := range failures {
		fmt.Fprintf(&b, "  FAIL %s:%d:%d [%s] %s\n", f.Path, f.Span.Start.Line, f.Span.Start.Column, f.Code, f.Message)
	}
	for _, p := range r.Written {
		fmt.Fprintf(&b, "  wrote %s\n", p)
	}
	return b.String()
}

func formatWatchUpdate(u ports.WatchUpdate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d changed, %d removed, %d failed\n",
		time.Now().Format("15:04:05"), len(u.Changed), len(u.Removed), len(u.Failed))
	for _, f := range u.Failed {
		fmt.Fprintf(&b, "  FAIL %s:%d [%s] %s\n", f.Path, f.Span.Start.Line, f.Code, f.Message)
	}
	return b.String()
}

func formatRuns(list []store.RunSummary) string {
	if len(list) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	for _, r := range list {
		fmt.Fprintf(&b, "%s  %s  ok=%d failed=%d  %s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.FilesOK, r.FilesFailed, r.Root)
	}
	return b.String()
}

func formatLookup(name string, records []store.SymbolRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No symbol named %q in the latest run.\n", name)
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s:%d-%d  %s\n", r.Path, r.StartLine, r.EndLine, r.QualifiedName)
		fmt.Fprintf(&b, "    %s\n", r.Signature)
		if r.Role != "" && r.Role != parser.RolePlain {
			fmt.Fprintf(&b, "    role: %s\n", r.Role)
		}
		if len(r.Decorators) > 0 {
			fmt.Fprintf(&b, "    decorators: %s\n", strings.Join(r.Decorators, ", "))
		}
		if r.Doc != "" {
			doc, _, _ := strings.Cut(r.Doc, "\n")
			fmt.Fprintf(&b, "    %s\n", doc)
		}
	}
	return b.String()
}

func formatImporters(module string, records []store.ImportRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No file imports %q in the latest run.\n", module)
	}
	var b strings.Builder
	for _, r := range records {
		target := strings.Repeat(".", r.Level) + r.Module
		switch {
		case len(r.Items) > 0:
			fmt.Fprintf(&b, "%s:%d  from %s import %s\n", r.Path, r.Line, target, strings.Join(r.Items, ", "))
		case r.Alias != "":
			fmt.Fprintf(&b, "%s:%d  import %s as %s\n", r.Path, r.Line, target, r.Alias)
		default:
			fmt.Fprintf(&b, "%s:%d  import %s\n", r.Path, r.Line, target)
		}
	}
	return b.String()
}
