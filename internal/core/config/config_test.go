package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
version = 1
scan_paths = ["`+filepath.ToSlash(dir)+`"]

[exclude]
dirs = [".git", "migrations"]
files = ["*_pb2.py"]

[languages.python]
extensions = [".py"]
include_tests = true

[parser]
lenient_escapes = true
verify_tree_sitter = true

[batch]
workers = 3
fail_fast = true
max_files_per_second = 50

[db]
enabled = false

[output]
json = "symbols.json"
mermaid = "classes.mmd"

[output.paths]
root = "docs"

[watch]
debounce = "1s"

[observability]
metrics_addr = ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{".git", "migrations"}, cfg.Exclude.Dirs)
	assert.Equal(t, []string{".py"}, cfg.Languages.Python.Extensions)
	assert.True(t, cfg.Languages.Python.IncludeTests)
	assert.True(t, cfg.Parser.LenientEscapes)
	assert.True(t, cfg.Parser.VerifyTreeSitter)
	assert.Equal(t, Batch{Workers: 3, FailFast: true, MaxFilesPerSecond: 50}, cfg.Batch)
	assert.False(t, cfg.DB.IsEnabled())
	assert.Equal(t, "symbols.json", cfg.Output.JSON)
	assert.Equal(t, "docs", cfg.Output.Paths.Root)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, ":9090", cfg.Observability.MetricsAddr)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"."}, cfg.ScanPaths)
	assert.Contains(t, cfg.Exclude.Dirs, "__pycache__")
	assert.Equal(t, []string{".py", ".pyi"}, cfg.Languages.Python.Extensions)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Batch.Workers)
	assert.True(t, cfg.DB.IsEnabled())
	assert.Equal(t, "data/database/symbols.db", cfg.DB.Path)
	assert.Equal(t, 5*time.Second, cfg.DB.BusyTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := writeConfig(t, t.TempDir(), "bad = toml = format")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_ReportsEveryValidationError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
version = 2

[batch]
workers = -1

[exclude]
files = ["[unclosed"]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version 2")
	assert.Contains(t, err.Error(), "batch.workers must be >= 1, got -1")
	assert.Contains(t, err.Error(), `exclude.files[0] "[unclosed" is not a valid glob`)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return Default() }

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "output conflict",
			mutate: func(c *Config) { c.Output.JSON, c.Output.TSV = "out/a", "out/./a" },
			want:   `output conflict: output.json and output.tsv share the same path "out/./a"`,
		},
		{
			name:   "bad extension",
			mutate: func(c *Config) { c.Languages.Python.Extensions = []string{"src/py"} },
			want:   `languages.python.extensions[0] "src/py" is not a file extension`,
		},
		{
			name:   "negative rate",
			mutate: func(c *Config) { c.Batch.MaxFilesPerSecond = -1 },
			want:   "batch.max_files_per_second must be >= 0, got -1",
		},
		{
			name:   "missing scan path",
			mutate: func(c *Config) { c.ScanPaths = []string{"/non/existent/path"} },
			want:   `scan_paths[0] "/non/existent/path" does not exist`,
		},
		{
			name:   "empty exclude",
			mutate: func(c *Config) { c.Exclude.Dirs = []string{" "} },
			want:   "exclude.dirs[0] must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			var msgs []string
			for _, err := range Validate(cfg) {
				msgs = append(msgs, err.Error())
			}
			assert.Contains(t, msgs, tt.want)
		})
	}

	assert.Empty(t, Validate(Default()))
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, path, err := LoadDefault(dir)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultExampleFile), []byte("[batch]\nworkers = 2\n"), 0o644))
	cfg, path, err = LoadDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultExampleFile), path)
	assert.Equal(t, 2, cfg.Batch.Workers)

	writeConfig(t, dir, "[batch]\nworkers = 7\n")
	cfg, path, err = LoadDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFile), path)
	assert.Equal(t, 7, cfg.Batch.Workers)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SYMTREE_BATCH_WORKERS", "9")
	t.Setenv("SYMTREE_DB_ENABLED", "false")
	t.Setenv("SYMTREE_WATCH_DEBOUNCE", "2s")
	t.Setenv("SYMTREE_PARSER_VERIFY_TREE_SITTER", "true")
	t.Setenv("SYMTREE_BATCH_FAIL_FAST", "not-a-bool")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, 9, cfg.Batch.Workers)
	assert.False(t, cfg.DB.IsEnabled())
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.True(t, cfg.Parser.VerifyTreeSitter)
	assert.False(t, cfg.Batch.FailFast, "unparsable values are ignored")
}
