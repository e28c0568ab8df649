package app

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"symtree/internal/core/ports"
	"symtree/internal/core/watcher"
	"symtree/internal/shared/util"
)

// StartWatcher watches the scan paths and refreshes the snapshot on every
// debounced batch of changes. RunScan should have completed first.
func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(watcher.Options{
		Debounce:     a.Config.Watch.Debounce,
		ExcludeDirs:  a.Config.Exclude.Dirs,
		ExcludeFiles: a.Config.Exclude.Files,
		IncludeTests: a.Config.Languages.Python.IncludeTests,
	}, a.codeParser, func(paths []string) {
		a.HandleChanges(ctx, paths)
	})
	if err != nil {
		return err
	}
	if err := w.Watch(a.Paths.ScanPaths); err != nil {
		w.Close()
		return err
	}
	if prev := a.activeWatcher.Swap(w); prev != nil {
		prev.Close()
	}
	return nil
}

// SetWatchDebounce applies a new debounce to the running watcher.
func (a *App) SetWatchDebounce(d time.Duration) {
	if w := a.activeWatcher.Load(); w != nil {
		w.SetDebounce(d)
	}
}

func (a *App) inScanPaths(path string) bool {
	for _, root := range a.Paths.ScanPaths {
		if util.IsWithin(path, root) {
			return true
		}
	}
	return false
}

// HandleChanges re-parses the given absolute paths. Paths that no longer
// exist are dropped from the snapshot and the store; the rest replace their
// previous entry. Paths outside the scan paths are ignored. Reports are
// rewritten once per call.
func (a *App) HandleChanges(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	current := a.Snapshot()

	files := make(map[string]FileResult, len(current.Files)+len(current.Failures))
	for _, f := range current.Files {
		files[f.Path] = FileResult{Path: f.Path, File: f}
	}
	for i := range current.Failures {
		f := current.Failures[i]
		files[f.Path] = FileResult{Path: f.Path, Failure: &f}
	}

	update := ports.WatchUpdate{}
	for _, path := range paths {
		if !a.inScanPaths(path) {
			continue
		}
		rel := util.RelativeTo(a.Paths.ProjectRoot, path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if _, known := files[rel]; !known {
				continue
			}
			delete(files, rel)
			update.Removed = append(update.Removed, rel)
			if err := a.removeStoredFile(ctx, current.RunID, rel); err != nil {
				slog.Warn("failed to remove stored file", "path", rel, "error", err)
			}
			continue
		}
		if !a.acceptFile(path) {
			continue
		}

		res := a.parseOne(ctx, path)
		files[rel] = res
		update.Changed = append(update.Changed, rel)
		if res.Failure != nil {
			update.Failed = append(update.Failed, *res.Failure)
			slog.Warn("file skipped", "path", rel, "code", res.Failure.Code, "error", res.Failure.Message)
		}
		if err := a.replaceStoredFile(ctx, current.RunID, res.File, res.Failure); err != nil {
			slog.Warn("failed to update stored file", "path", rel, "error", err)
		}
	}
	if len(update.Changed) == 0 && len(update.Removed) == 0 {
		return
	}

	next := ports.Snapshot{
		RunID:        current.RunID,
		Root:         current.Root,
		StartedAt:    current.StartedAt,
		FinishedAt:   time.Now(),
		Dependencies: current.Dependencies,
	}
	for _, rel := range util.SortedStringKeys(files) {
		res := files[rel]
		if res.Failure != nil {
			next.Failures = append(next.Failures, *res.Failure)
			continue
		}
		next.Files = append(next.Files, res.File)
	}
	sort.Strings(update.Changed)
	sort.Strings(update.Removed)
	a.setSnapshot(next)

	if _, err := a.writeReports(next); err != nil {
		slog.Error("failed to refresh reports", "error", err)
	}
	slog.Info("watch update", "changed", len(update.Changed), "removed", len(update.Removed), "failed", len(update.Failed))

	update.Snapshot = next
	a.emitUpdate(update)
}
