package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_DetectsProjectRoot(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), nil, 0o644))

	cfg := Default()
	cfg.ScanPaths = []string{src}

	paths, err := ResolvePaths(cfg, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), paths.ProjectRoot)
	assert.Equal(t, []string{src}, paths.ScanPaths)
	assert.Equal(t, filepath.Join(root, "data", "database", "symbols.db"), paths.DBPath)
	assert.Equal(t, filepath.Clean(root), paths.OutputRoot)
}

func TestResolvePaths_ExplicitOverrides(t *testing.T) {
	cwd := t.TempDir()
	abs := filepath.Join(t.TempDir(), "index.db")

	cfg := Default()
	cfg.Paths.ProjectRoot = "proj"
	cfg.DB.Path = abs
	cfg.Output.Paths.Root = "reports"

	paths, err := ResolvePaths(cfg, cwd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "proj"), paths.ProjectRoot)
	assert.Equal(t, abs, paths.DBPath)
	assert.Equal(t, filepath.Join(cwd, "proj", "reports"), paths.OutputRoot)

	_, err = ResolvePaths(cfg, " ")
	assert.Error(t, err)
}
