package app

import (
	"context"
	"fmt"
	"time"

	"symtree/internal/core/ports"
	"symtree/internal/data/store"
	"symtree/internal/engine/parser"
	"symtree/internal/shared/observability"
)

func (a *App) initSymbolStore() error {
	if !a.Config.DB.IsEnabled() || a.Paths.DBPath == "" {
		return nil
	}
	s, err := store.Open(a.Paths.DBPath, a.Config.DB.BusyTimeout)
	if err != nil {
		return fmt.Errorf("open sqlite symbol store: %w", err)
	}
	a.symbolStore = s
	return nil
}

// saveSnapshot persists a run and returns its ID. Without a store the ID is
// empty.
func (a *App) saveSnapshot(ctx context.Context, s ports.Snapshot) (string, error) {
	if a.symbolStore == nil {
		return "", nil
	}
	start := time.Now()
	defer func() { observability.StoreWriteDuration.Observe(time.Since(start).Seconds()) }()
	return a.symbolStore.SaveRun(ctx, s)
}

func (a *App) replaceStoredFile(ctx context.Context, runID string, file *parser.SourceFile, failure *ports.Failure) error {
	if a.symbolStore == nil || runID == "" {
		return nil
	}
	return a.symbolStore.ReplaceFile(ctx, runID, file, failure)
}

func (a *App) removeStoredFile(ctx context.Context, runID, path string) error {
	if a.symbolStore == nil || runID == "" {
		return nil
	}
	return a.symbolStore.RemoveFile(ctx, runID, path)
}
