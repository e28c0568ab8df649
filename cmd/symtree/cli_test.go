package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symtree/internal/core/config"
	"symtree/internal/core/errors"
	"symtree/internal/core/ports"
	"symtree/internal/data/store"
	"symtree/internal/engine/parser"
)

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, loaded, err := loadConfig("", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Equal(t, config.Default().Batch.Workers, cfg.Batch.Workers)
}

func TestLoadConfig_ExplicitPathAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.toml"), []byte("version = 1\n[batch]\nworkers = 3\n"), 0o644))
	t.Setenv("SYMTREE_WATCH_DEBOUNCE", "2s")

	cfg, loaded, err := loadConfig("custom.toml", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.toml"), loaded)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, _, err := loadConfig("nope.toml", t.TempDir())
	assert.Error(t, err)
}

func TestRunStoreQuery(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	paths := config.ResolvedPaths{ProjectRoot: dir, DBPath: filepath.Join(dir, "symtree.db")}

	s, err := store.Open(paths.DBPath, 0)
	require.NoError(t, err)
	file, err := parser.NewParser(parser.Options{}).ParseFile("shapes.py", []byte("class Shape:\n    def area(self) -> float:\n        \"\"\"Area in square units.\"\"\"\n        return 0.0\n"))
	require.NoError(t, err)
	runID, err := s.SaveRun(context.Background(), ports.Snapshot{
		Root:       dir,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Files:      []*parser.SourceFile{file},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var out bytes.Buffer
	err = runStoreQuery(context.Background(), &out, cfg, paths, storeQuery{Lookup: "area", Runs: 5})
	require.NoError(t, err)
	assert.Contains(t, out.String(), runID)
	assert.Contains(t, out.String(), "ok=1 failed=0")
	assert.Contains(t, out.String(), "shapes.Shape.area")
	assert.Contains(t, out.String(), "def area(self) -> float")
	assert.Contains(t, out.String(), "Area in square units.")

	out.Reset()
	require.NoError(t, runStoreQuery(context.Background(), &out, cfg, paths, storeQuery{Lookup: "missing"}))
	assert.Contains(t, out.String(), `No symbol named "missing"`)
}

func TestRunStoreQuery_StoreDisabled(t *testing.T) {
	cfg := config.Default()
	disabled := false
	cfg.DB.Enabled = &disabled

	err := runStoreQuery(context.Background(), &bytes.Buffer{}, cfg, config.ResolvedPaths{}, storeQuery{Runs: 1})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestFormatScanResult(t *testing.T) {
	out := formatScanResult(ports.ScanResult{
		RunID:    "run-1",
		Files:    2,
		Failed:   1,
		Symbols:  7,
		Duration: 1500 * time.Millisecond,
		Written:  []string{"/tmp/symbols.json"},
	}, []ports.Failure{{
		Path:    "pkg/broken.py",
		Code:    errors.CodeParseError,
		Message: "expected ')'",
		Span:    parser.Span{Start: parser.Position{Line: 3, Column: 9}},
	}})

	assert.Contains(t, out, "Scanned 3 file(s) in 1.5s: 7 symbol(s), 0 warning(s), 1 failed")
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "FAIL pkg/broken.py:3:9 [PARSE_ERROR] expected ')'")
	assert.Contains(t, out, "wrote /tmp/symbols.json")
}

func TestFormatRuns_Empty(t *testing.T) {
	assert.Equal(t, "No runs recorded.\n", formatRuns(nil))
}

func TestRunStoreQuery_Importers(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	paths := config.ResolvedPaths{ProjectRoot: dir, DBPath: filepath.Join(dir, "symtree.db")}

	s, err := store.Open(paths.DBPath, 0)
	require.NoError(t, err)
	p := parser.NewParser(parser.Options{})
	api, err := p.ParseFile("app/api.py", []byte("import app.models as m\nfrom .models import User\n"))
	require.NoError(t, err)
	cli, err := p.ParseFile("app/cli.py", []byte("import sys\n"))
	require.NoError(t, err)
	_, err = s.SaveRun(context.Background(), ports.Snapshot{
		Root:       dir,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Files:      []*parser.SourceFile{api, cli},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var out bytes.Buffer
	require.NoError(t, runStoreQuery(context.Background(), &out, cfg, paths, storeQuery{Importers: "models"}))
	assert.Contains(t, out.String(), "app/api.py:1  import app.models as m")
	assert.Contains(t, out.String(), "app/api.py:2  from .models import User")
	assert.NotContains(t, out.String(), "app/cli.py")

	out.Reset()
	require.NoError(t, runStoreQuery(context.Background(), &out, cfg, paths, storeQuery{Importers: "json"}))
	assert.Equal(t, "No file imports \"json\" in the latest run.\n", out.String())
}
