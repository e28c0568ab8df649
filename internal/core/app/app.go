package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"

	"symtree/internal/core/config"
	"symtree/internal/core/ports"
	"symtree/internal/core/watcher"
	"symtree/internal/engine/parser"
	"symtree/internal/shared/util"
)

// App wires discovery, the batch parser, persistence and reporting around
// one configuration. Snapshot holds the most recent batch; watch mode keeps
// it current file by file.
type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	codeParser   ports.CodeParser
	symbolStore  ports.SymbolStore
	reporters    []reportTarget
	limiter      *util.Limiter
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob

	snapshotMu sync.RWMutex
	snapshot   ports.Snapshot

	updateMu sync.RWMutex
	onUpdate func(ports.WatchUpdate)

	activeWatcher atomic.Pointer[watcher.Watcher]
}

type Option func(*App)

// WithSymbolStore replaces the store opened from [db] settings.
func WithSymbolStore(s ports.SymbolStore) Option {
	return func(a *App) { a.symbolStore = s }
}

// WithCodeParser replaces the parser built from [languages] and [parser].
func WithCodeParser(p ports.CodeParser) Option {
	return func(a *App) { a.codeParser = p }
}

func New(cfg *config.Config, paths config.ResolvedPaths, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	excludeDirs, err := compileGlobs(cfg.Exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileGlobs(cfg.Exclude.Files, "exclude file")
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Paths:        paths,
		limiter:      util.NewLimiter(cfg.Batch.MaxFilesPerSecond, cfg.Batch.Workers),
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.codeParser == nil {
		a.codeParser = parser.NewParser(parser.Options{
			Extensions:     cfg.Languages.Python.Extensions,
			LenientEscapes: cfg.Parser.LenientEscapes,
			Verify:         cfg.Parser.VerifyTreeSitter,
		})
	}
	if a.symbolStore == nil {
		if err := a.initSymbolStore(); err != nil {
			return nil, err
		}
	}
	a.reporters = a.resolveOutputTargets()
	return a, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// SetUpdateHandler registers the callback invoked after each watch-mode
// refresh.
func (a *App) SetUpdateHandler(fn func(ports.WatchUpdate)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = fn
}

func (a *App) emitUpdate(u ports.WatchUpdate) {
	a.updateMu.RLock()
	fn := a.onUpdate
	a.updateMu.RUnlock()
	if fn != nil {
		fn(u)
	}
}

// Snapshot returns the current batch result. Slices are shared; callers must
// not modify them.
func (a *App) Snapshot() ports.Snapshot {
	a.snapshotMu.RLock()
	defer a.snapshotMu.RUnlock()
	return a.snapshot
}

func (a *App) setSnapshot(s ports.Snapshot) {
	a.snapshotMu.Lock()
	defer a.snapshotMu.Unlock()
	a.snapshot = s
}

func (a *App) Close(ctx context.Context) error {
	if w := a.activeWatcher.Swap(nil); w != nil {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}
	if a.symbolStore != nil {
		return a.symbolStore.Close()
	}
	return nil
}
