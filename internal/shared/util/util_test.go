package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlashPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":              "",
		".":             "",
		"  ./foo/bar  ": "foo/bar",
		"foo/../bar":    "bar",
		`pkg\mod.py`:    "pkg/mod.py",
	}
	for in, want := range cases {
		assert.Equal(t, want, SlashPath(in), in)
	}
}

func TestRelativeTo(t *testing.T) {
	t.Parallel()

	root := filepath.Join("work", "proj")
	assert.Equal(t, "pkg/mod.py", RelativeTo(root, filepath.Join(root, "pkg", "mod.py")))
	assert.Equal(t, "other/x.py", RelativeTo(root, filepath.Join("other", "x.py")))
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path, dir string
		want      bool
	}{
		{"out/report.json", "out", true},
		{"out", "out", true},
		{"outside/x.py", "out", false},
		{`out\nested\a.py`, "out", true},
		{"src/a.py", "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsWithin(tc.path, tc.dir), tc.path)
	}
}

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b", "c"}, SortedStringKeys(map[string]int{"b": 2, "a": 1, "c": 3}))
	assert.Empty(t, SortedStringKeys(map[string]bool{}))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}
