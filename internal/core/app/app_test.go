package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"symtree/internal/core/config"
	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/data/store"
	"symtree/internal/output"
)

const modelsSrc = `"""Models."""

class Base:
    pass

class User(Base):
    @property
    def name(self) -> str:
        return self._name

async def fetch_data(url: str) -> dict:
    pass
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", "[project]\nname = \"demo\"\ndependencies = [\"httpx>=0.24\"]\n")
	writeFile(t, root, "pkg/models.py", modelsSrc)
	writeFile(t, root, "pkg/broken.py", "def f(:\n    pass\n")
	writeFile(t, root, "pkg/util.py", "def helper(x, *args, **kw):\n    return x\n")
	writeFile(t, root, "tests/test_models.py", "def test_user(): pass\n")
	writeFile(t, root, ".venv/lib/site.py", "def vendored(): pass\n")
	writeFile(t, root, "pkg/api_pb2.py", "def generated(): pass\n")
	writeFile(t, root, "README.md", "# demo\n")
	return root
}

func newTestApp(t *testing.T, root string, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Exclude.Files = []string{"*_pb2.py"}
	cfg.DB.Path = filepath.Join(t.TempDir(), "symbols.db")
	cfg.Batch.Workers = 4
	if mutate != nil {
		mutate(cfg)
	}
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)

	a, err := New(cfg, paths)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestScanDirectories_AppliesFilters(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, nil)

	files, err := a.ScanDirectories([]string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "pkg", "broken.py"),
		filepath.Join(root, "pkg", "models.py"),
		filepath.Join(root, "pkg", "util.py"),
	}, files)

	withTests := newTestApp(t, root, func(c *config.Config) { c.Languages.Python.IncludeTests = true })
	files, err = withTests.ScanDirectories([]string{root, filepath.Join(root, "tests", "test_models.py")})
	require.NoError(t, err)
	assert.Len(t, files, 4, "explicit file paths are deduplicated")

	_, err = a.ScanDirectories([]string{filepath.Join(root, "missing")})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestNew_RejectsBadExcludeGlob(t *testing.T) {
	cfg := config.Default()
	cfg.Exclude.Dirs = []string{"[unclosed"}
	_, err := New(cfg, config.ResolvedPaths{})
	assert.ErrorContains(t, err, "invalid exclude dir pattern")
}

func TestParseBatch_KeepsInputOrder(t *testing.T) {
	root := t.TempDir()
	var files []string
	for i := 0; i < 24; i++ {
		files = append(files, writeFile(t, root, fmt.Sprintf("m%02d.py", i), fmt.Sprintf("def f%d(): pass\n", i)))
	}
	a := newTestApp(t, root, func(c *config.Config) { c.DB.Enabled = new(bool) })

	results, err := a.ParseBatch(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, len(files))
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("m%02d.py", i), r.Path)
		require.NotNil(t, r.File)
		assert.Equal(t, fmt.Sprintf("f%d", i), r.File.Symbols[0].Meta().Name)
	}
}

func TestParseBatch_RecordsFailuresAndContinues(t *testing.T) {
	root := t.TempDir()
	files := []string{
		writeFile(t, root, "a.py", "def ok(): pass\n"),
		writeFile(t, root, "b.py", "def bad(x y):\n    pass\n"),
		writeFile(t, root, "c.py", "s = 'unterminated\n"),
		filepath.Join(root, "gone.py"),
	}
	a := newTestApp(t, root, nil)

	results, err := a.ParseBatch(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NotNil(t, results[0].File)
	require.NotNil(t, results[1].Failure)
	assert.Equal(t, errors.CodeParseError, results[1].Failure.Code)
	assert.Equal(t, "b.py", results[1].Failure.Path)
	assert.Positive(t, results[1].Failure.Span.Start.Line)
	require.NotNil(t, results[2].Failure)
	assert.Equal(t, errors.CodeLexError, results[2].Failure.Code)
	require.NotNil(t, results[3].Failure)
	assert.Equal(t, errors.CodeInternal, results[3].Failure.Code)
}

func TestParseBatch_FailFastStopsDispatch(t *testing.T) {
	root := t.TempDir()
	files := []string{
		writeFile(t, root, "a_bad.py", "def a(x y):\n    pass\n"),
		writeFile(t, root, "b.py", "def b(): pass\n"),
		writeFile(t, root, "c.py", "def c(): pass\n"),
		writeFile(t, root, "d.py", "def d(): pass\n"),
	}
	a := newTestApp(t, root, func(c *config.Config) {
		c.Batch.Workers = 1
		c.Batch.FailFast = true
	})

	results, err := a.ParseBatch(context.Background(), files)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseError))
	assert.Less(t, len(results), len(files))
	require.NotNil(t, results[0].Failure)
}

func TestParseBatch_CancelledBeforeDispatch(t *testing.T) {
	root := t.TempDir()
	files := []string{writeFile(t, root, "a.py", "def a(): pass\n")}
	a := newTestApp(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := a.ParseBatch(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestParseBatch_EmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	root := t.TempDir()
	files := []string{
		writeFile(t, root, "a.py", "def a(): pass\n"),
		writeFile(t, root, "b.py", "def b(x y): pass\n"),
	}
	a := newTestApp(t, root, nil)

	_, err := a.ParseBatch(context.Background(), files)
	require.NoError(t, err)

	var batch, perFile int
	paths := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		switch s.Name {
		case "batch":
			batch++
		case "parse_file":
			perFile++
			for _, attr := range s.Attributes {
				if attr.Key == "file.path" {
					paths[attr.Value.Emit()] = true
				}
			}
		}
	}
	assert.Equal(t, 1, batch)
	assert.Equal(t, 2, perFile)
	assert.Equal(t, map[string]bool{"a.py": true, "b.py": true}, paths)
}

func TestRunScan_PersistsAndReports(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, func(c *config.Config) {
		c.Output.JSON = "out/symbols.json"
		c.Output.TSV = "out/symbols.tsv"
		c.Output.Mermaid = "out/classes.mmd"
		c.Output.PlantUML = "out/classes.puml"
		c.Output.DOT = "out/inheritance.dot"
	})

	result, err := a.RunScan(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 4, result.Symbols)
	assert.Len(t, result.Written, 5)

	data, err := os.ReadFile(filepath.Join(root, "out", "symbols.json"))
	require.NoError(t, err)
	var report output.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, result.RunID, report.RunID)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "pkg/models.py", report.Files[0].Path)
	assert.Equal(t, "pkg/broken.py", report.Failures[0].Path)
	require.Len(t, report.Dependencies, 1)
	assert.Equal(t, "httpx", report.Dependencies[0].Name)

	for _, name := range []string{"symbols.tsv", "classes.mmd", "classes.puml", "inheritance.dot"} {
		assert.FileExists(t, filepath.Join(root, "out", name))
	}

	st := a.symbolStore.(*store.Store)
	recs, err := st.Lookup(context.Background(), "models.User.name")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "pkg/models.py", recs[0].Path)

	snap := a.Snapshot()
	assert.Equal(t, result.RunID, snap.RunID)
	assert.Len(t, snap.Files, 2)
}

func TestRunScan_WithoutStore(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, func(c *config.Config) { c.DB.Enabled = new(bool) })
	assert.Nil(t, a.symbolStore)

	result, err := a.RunScan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.RunID)
	assert.Equal(t, 2, result.Files)
	assert.Empty(t, result.Written)
}

func TestHandleChanges(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, func(c *config.Config) { c.Output.JSON = "symbols.json" })

	_, err := a.RunScan(context.Background())
	require.NoError(t, err)

	var updates []ports.WatchUpdate
	a.SetUpdateHandler(func(u ports.WatchUpdate) { updates = append(updates, u) })

	fixed := writeFile(t, root, "pkg/broken.py", "def fixed(): pass\n")
	added := writeFile(t, root, "pkg/extra.py", "class Extra: pass\n")
	util := filepath.Join(root, "pkg", "util.py")
	require.NoError(t, os.Remove(util))
	ignored := writeFile(t, root, "pkg/notes.txt", "x\n")

	a.HandleChanges(context.Background(), []string{fixed, added, util, ignored})

	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, []string{"pkg/broken.py", "pkg/extra.py"}, u.Changed)
	assert.Equal(t, []string{"pkg/util.py"}, u.Removed)
	assert.Empty(t, u.Failed)
	assert.Empty(t, u.Snapshot.Failures)

	var paths []string
	for _, f := range u.Snapshot.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"pkg/broken.py", "pkg/extra.py", "pkg/models.py"}, paths)

	st := a.symbolStore.(*store.Store)
	recs, err := st.Lookup(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	recs, err = st.Lookup(context.Background(), "helper")
	require.NoError(t, err)
	assert.Empty(t, recs)
	latest, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, latest.FilesOK)
	assert.Equal(t, 0, latest.FilesFailed)

	data, err := os.ReadFile(filepath.Join(root, "symbols.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Extra")

	a.HandleChanges(context.Background(), []string{filepath.Join(root, "pkg", "never.py")})
	assert.Len(t, updates, 1, "unknown removals do not emit")

	outside := writeFile(t, t.TempDir(), "elsewhere.py", "def far(): pass\n")
	a.HandleChanges(context.Background(), []string{outside})
	assert.Len(t, updates, 1, "paths outside the scan paths are ignored")
}

func TestHealthService(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, nil)

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["symbol_store"])
	assert.Equal(t, "none", status.Components["last_run"])

	_, err := a.RunScan(context.Background())
	require.NoError(t, err)
	status = NewHealthService(a).Check(context.Background())
	assert.Contains(t, status.Components["last_run"], "(2 files, 1 failed)")
}

func TestHealthService_ConcurrentWithWatcherLifecycle(t *testing.T) {
	root := newProject(t)
	a := newTestApp(t, root, nil)
	health := NewHealthService(a)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			health.Check(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			a.SetWatchDebounce(time.Duration(i) * time.Millisecond)
		}
	}()
	require.NoError(t, a.StartWatcher(ctx))
	wg.Wait()

	assert.Equal(t, "running", health.Check(ctx).Components["watcher"])
	require.NoError(t, a.Close(ctx))
	assert.NotContains(t, health.Check(ctx).Components, "watcher")
}
