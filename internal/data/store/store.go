package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/engine/manifest"
	"symtree/internal/engine/parser"
)

const driverName = "sqlite"

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type RunSummary struct {
	ID          string
	Root        string
	StartedAt   time.Time
	FinishedAt  time.Time
	FilesOK     int
	FilesFailed int
}

type SymbolRecord struct {
	RunID         string
	Path          string
	Name          string
	QualifiedName string
	Kind          parser.SymbolKind
	Parent        string
	Role          parser.Role
	IsAsync       bool
	IsPrivate     bool
	Signature     string
	Bases         []string
	Decorators    []string
	Doc           string
	StartLine     int
	EndLine       int
}

type DiagnosticRecord struct {
	Path    string
	Kind    parser.DiagnosticKind
	Message string
	Line    int
	Column  int
}

// ImportRecord is one import statement. Items holds the names of a `from`
// import, rendered "name" or "name as alias"; Level counts leading dots.
type ImportRecord struct {
	Path   string
	Module string
	Alias  string
	Items  []string
	Level  int
	Line   int
}

// Store is the SQLite symbol index. Lookups read the most recent run.
type Store struct {
	db *sql.DB

	cacheMu     sync.RWMutex
	lookupCache map[string][]SymbolRecord
}

var _ ports.SymbolStore = (*Store)(nil)

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("symbol store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("symbol store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create symbol store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite symbol store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite symbol store %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{db: db, lookupCache: make(map[string][]SymbolRecord)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lookupCache = make(map[string][]SymbolRecord)
}

// SaveRun persists a snapshot in one transaction and returns its run ID,
// assigning a new one when RunID is empty.
func (s *Store) SaveRun(ctx context.Context, run ports.Snapshot) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, root, started_at_utc, finished_at_utc) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Root, formatTime(run.StartedAt), formatTime(run.FinishedAt)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for _, file := range run.Files {
		if err := insertFile(ctx, tx, run.RunID, file); err != nil {
			return "", err
		}
	}
	for _, failure := range run.Failures {
		if err := insertFailure(ctx, tx, run.RunID, failure); err != nil {
			return "", err
		}
	}
	for _, dep := range run.Dependencies {
		if _, err := tx.ExecContext(ctx, `INSERT INTO dependencies (run_id, name, version, scope, extra, source) VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, dep.Name, dep.Version, string(dep.Scope), dep.Extra, dep.Source); err != nil {
			return "", fmt.Errorf("insert dependency %q: %w", dep.Name, err)
		}
	}
	if err := updateCounts(ctx, tx, run.RunID); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run tx: %w", err)
	}
	s.clearCache()
	return run.RunID, nil
}

// ReplaceFile swaps the rows of one path inside an existing run. Exactly one
// of file and failure must be non-nil.
func (s *Store) ReplaceFile(ctx context.Context, runID string, file *parser.SourceFile, failure *ports.Failure) error {
	if (file == nil) == (failure == nil) {
		return errors.New(errors.CodeValidationError, "ReplaceFile needs exactly one of file or failure")
	}
	path := ""
	if file != nil {
		path = file.Path
	} else {
		path = failure.Path
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	if err := deletePath(ctx, tx, runID, path); err != nil {
		return err
	}
	if file != nil {
		err = insertFile(ctx, tx, runID, file)
	} else {
		err = insertFailure(ctx, tx, runID, *failure)
	}
	if err != nil {
		return err
	}
	if err := touchRun(ctx, tx, runID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	s.clearCache()
	return nil
}

// RemoveFile drops every row of path from a run.
func (s *Store) RemoveFile(ctx context.Context, runID, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove tx: %w", err)
	}
	defer tx.Rollback()

	if err := deletePath(ctx, tx, runID, path); err != nil {
		return err
	}
	if err := touchRun(ctx, tx, runID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove tx: %w", err)
	}
	s.clearCache()
	return nil
}

// Runs lists the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, root, started_at_utc, finished_at_utc, files_ok, files_failed
FROM runs ORDER BY started_at_utc DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r                 RunSummary
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Root, &started, &finished, &r.FilesOK, &r.FilesFailed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, r.FinishedAt = parseTime(started), parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LatestRun(ctx context.Context) (RunSummary, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return RunSummary{}, err
	}
	if len(runs) == 0 {
		return RunSummary{}, errors.New(errors.CodeNotFound, "no runs recorded")
	}
	return runs[0], nil
}

// Lookup finds symbols of the latest run by plain or qualified name.
func (s *Store) Lookup(ctx context.Context, name string) ([]SymbolRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	s.cacheMu.RLock()
	if res, ok := s.lookupCache[name]; ok {
		s.cacheMu.RUnlock()
		return res, nil
	}
	s.cacheMu.RUnlock()

	latest, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, path, name, qualified_name, kind, parent, role, is_async, is_private,
  signature, bases, decorators, doc, start_line, end_line
FROM symbols
WHERE run_id = ? AND (name = ? OR qualified_name = ?)
ORDER BY path, start_line`, latest.ID, name, name)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	defer rows.Close()

	out := make([]SymbolRecord, 0)
	for rows.Next() {
		var (
			rec               SymbolRecord
			bases, decorators string
		)
		if err := rows.Scan(&rec.RunID, &rec.Path, &rec.Name, &rec.QualifiedName, &rec.Kind, &rec.Parent, &rec.Role,
			&rec.IsAsync, &rec.IsPrivate, &rec.Signature, &bases, &decorators, &rec.Doc, &rec.StartLine, &rec.EndLine); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		_ = json.Unmarshal([]byte(bases), &rec.Bases)
		_ = json.Unmarshal([]byte(decorators), &rec.Decorators)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.lookupCache[name] = out
	s.cacheMu.Unlock()
	return out, nil
}

func (s *Store) Diagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, kind, message, line, column_number
FROM diagnostics WHERE run_id = ? ORDER BY path, line, column_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagnosticRecord
	for rows.Next() {
		var d DiagnosticRecord
		if err := rows.Scan(&d.Path, &d.Kind, &d.Message, &d.Line, &d.Column); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Dependencies(ctx context.Context, runID string) ([]manifest.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, version, scope, extra, source
FROM dependencies WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var out []manifest.Dependency
	for rows.Next() {
		var d manifest.Dependency
		if err := rows.Scan(&d.Name, &d.Version, &d.Scope, &d.Extra, &d.Source); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Imports(ctx context.Context, runID string) ([]ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, module, alias, items, level, line
FROM imports WHERE run_id = ? ORDER BY path, line`, runID)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []ImportRecord
	for rows.Next() {
		var (
			r     ImportRecord
			items string
		)
		if err := rows.Scan(&r.Path, &r.Module, &r.Alias, &items, &r.Level, &r.Line); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		_ = json.Unmarshal([]byte(items), &r.Items)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Importers lists the imports of the latest run that name module, either as
// the imported module, a dotted suffix of it, or a name pulled from a
// package with `from`.
func (s *Store) Importers(ctx context.Context, module string) ([]ImportRecord, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return nil, nil
	}
	latest, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.Imports(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ImportRecord, 0)
	for _, r := range all {
		if r.names(module) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (r ImportRecord) names(module string) bool {
	if r.Module == module || strings.HasSuffix(r.Module, "."+module) {
		return true
	}
	for _, item := range r.Items {
		name, _, _ := strings.Cut(item, " as ")
		if name == module {
			return true
		}
	}
	return false
}

// PruneRuns deletes all but the keep most recent runs and returns how many
// were removed.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
  SELECT id FROM runs ORDER BY started_at_utc DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.clearCache()
	}
	return int(n), nil
}

func insertFile(ctx context.Context, tx *sql.Tx, runID string, file *parser.SourceFile) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO files (run_id, path, module, doc, status) VALUES (?, ?, ?, ?, ?)`,
		runID, file.Path, file.Module, file.Doc, StatusOK); err != nil {
		return fmt.Errorf("insert file %q: %w", file.Path, err)
	}

	symStmt, err := tx.PrepareContext(ctx, `INSERT INTO symbols (run_id, path, name, qualified_name, kind, parent, role,
  is_async, is_private, signature, bases, decorators, doc, start_line, end_line)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer symStmt.Close()

	for _, row := range symbolRows(file) {
		if _, err := symStmt.ExecContext(ctx, runID, file.Path, row.Name, row.QualifiedName, string(row.Kind), row.Parent,
			string(row.Role), boolToInt(row.IsAsync), boolToInt(row.IsPrivate), row.Signature,
			mustJSON(row.Bases), mustJSON(row.Decorators), row.Doc, row.StartLine, row.EndLine); err != nil {
			return fmt.Errorf("insert symbol %q: %w", row.QualifiedName, err)
		}
	}

	for _, imp := range file.Imports {
		items := make([]string, 0, len(imp.Items))
		for _, it := range imp.Items {
			if it.Alias != "" {
				items = append(items, it.Name+" as "+it.Alias)
				continue
			}
			items = append(items, it.Name)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO imports (run_id, path, module, alias, items, level, line) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, file.Path, imp.Module, imp.Alias, mustJSON(items), imp.Level, imp.Span.Start.Line); err != nil {
			return fmt.Errorf("insert import %q: %w", imp.Module, err)
		}
	}

	for _, d := range file.Diagnostics {
		if _, err := tx.ExecContext(ctx, `INSERT INTO diagnostics (run_id, path, kind, message, line, column_number) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, file.Path, string(d.Kind), d.Message, d.Span.Start.Line, d.Span.Start.Column); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

func insertFailure(ctx context.Context, tx *sql.Tx, runID string, f ports.Failure) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO files (run_id, path, status, error_code, error_message, error_line, error_column)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, f.Path, StatusFailed, string(f.Code), f.Message, f.Span.Start.Line, f.Span.Start.Column)
	if err != nil {
		return fmt.Errorf("insert failure %q: %w", f.Path, err)
	}
	return nil
}

func deletePath(ctx context.Context, tx *sql.Tx, runID, path string) error {
	for _, table := range []string{"symbols", "diagnostics", "imports"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ? AND path = ?`, runID, path); err != nil {
			return fmt.Errorf("delete %s rows for %q: %w", table, path, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE run_id = ? AND path = ?`, runID, path); err != nil {
		return fmt.Errorf("delete file row for %q: %w", path, err)
	}
	return nil
}

func touchRun(ctx context.Context, tx *sql.Tx, runID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE runs SET finished_at_utc = ? WHERE id = ?`, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("touch run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.CodeNotFound, fmt.Sprintf("run %s not found", runID))
	}
	return updateCounts(ctx, tx, runID)
}

func updateCounts(ctx context.Context, tx *sql.Tx, runID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE runs SET
  files_ok = (SELECT COUNT(*) FROM files WHERE run_id = ? AND status = ?),
  files_failed = (SELECT COUNT(*) FROM files WHERE run_id = ? AND status = ?)
WHERE id = ?`, runID, StatusOK, runID, StatusFailed, runID)
	if err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return nil
}

func symbolRows(file *parser.SourceFile) []SymbolRecord {
	var rows []SymbolRecord
	qualify := func(parts ...string) string {
		return strings.Join(append([]string{file.Module}, parts...), ".")
	}
	fnRow := func(fn *parser.Function, parent string) SymbolRecord {
		qualified := qualify(fn.Name)
		if parent != "" {
			qualified = qualify(parent, fn.Name)
		}
		return SymbolRecord{
			Name:          fn.Name,
			QualifiedName: qualified,
			Kind:          parser.KindFunction,
			Parent:        parent,
			Role:          fn.Role,
			IsAsync:       fn.IsAsync,
			IsPrivate:     fn.IsPrivate(),
			Signature:     fn.Signature(),
			Decorators:    decoratorNames(fn.Decorators),
			Doc:           fn.Doc,
			StartLine:     fn.Span.Start.Line,
			EndLine:       fn.Span.End.Line,
		}
	}

	for _, sym := range file.Symbols {
		switch s := sym.(type) {
		case *parser.Function:
			rows = append(rows, fnRow(s, ""))
		case *parser.Class:
			rows = append(rows, SymbolRecord{
				Name:          s.Name,
				QualifiedName: qualify(s.Name),
				Kind:          parser.KindClass,
				IsPrivate:     s.IsPrivate(),
				Signature:     s.Signature(),
				Bases:         s.Bases,
				Decorators:    decoratorNames(s.Decorators),
				Doc:           s.Doc,
				StartLine:     s.Span.Start.Line,
				EndLine:       s.Span.End.Line,
			})
			for _, m := range s.Members {
				rows = append(rows, fnRow(m, s.Name))
			}
		}
	}
	return rows
}

func decoratorNames(refs []parser.DecoratorRef) []string {
	out := make([]string, len(refs))
	for i, d := range refs {
		out[i] = d.Raw
	}
	return out
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
