package ports

import (
	"context"
	"time"

	"symtree/internal/core/errors"
	"symtree/internal/engine/manifest"
	"symtree/internal/engine/parser"
)

// CodeParser abstracts source parsing and file support checks.
type CodeParser interface {
	ParseFile(path string, content []byte) (*parser.SourceFile, error)
	IsSupportedPath(path string) bool
	IsTestFile(path string) bool
	SupportedExtensions() []string
}

// Failure is a file whose parse aborted with a fatal lex or parse error, or
// that could not be read.
type Failure struct {
	Path    string           `json:"path"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Span    parser.Span      `json:"span"`
}

// Snapshot is the outcome of one batch. Files and Failures are in input
// order.
type Snapshot struct {
	RunID        string
	Root         string
	StartedAt    time.Time
	FinishedAt   time.Time
	Files        []*parser.SourceFile
	Failures     []Failure
	Dependencies []manifest.Dependency
}

// SymbolStore persists snapshots and applies per-file updates from watch mode.
type SymbolStore interface {
	SaveRun(ctx context.Context, snapshot Snapshot) (string, error)
	ReplaceFile(ctx context.Context, runID string, file *parser.SourceFile, failure *Failure) error
	RemoveFile(ctx context.Context, runID, path string) error
	Close() error
}

// Reporter renders a snapshot in one output format.
type Reporter interface {
	Name() string
	Generate(snapshot Snapshot) (string, error)
}

// ScanResult summarizes a completed batch for driving adapters.
type ScanResult struct {
	RunID    string
	Files    int
	Failed   int
	Symbols  int
	Warnings int
	Written  []string
	Duration time.Duration
}

// WatchUpdate is emitted after each debounced batch of file changes.
type WatchUpdate struct {
	Changed  []string
	Removed  []string
	Failed   []Failure
	Snapshot Snapshot
}
