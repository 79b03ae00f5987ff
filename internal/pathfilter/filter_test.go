package pathfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindexer/indexer/internal/model"
)

func TestIgnoreMatcher_DirectorySuffix(t *testing.T) {
	m := NewIgnoreMatcher([]string{"node_modules/"})
	require.True(t, m.Match("node_modules/lodash/index.js"))
	require.True(t, m.Match("src/node_modules/foo.js"))
	require.False(t, m.Match("src/node_modules_backup/foo.js"))
}

func TestIgnoreMatcher_FullPathGlob(t *testing.T) {
	m := NewIgnoreMatcher([]string{"src/**/*.test.go"})
	require.True(t, m.Match("src/a/b/x.test.go"))
	require.False(t, m.Match("other/a/x.test.go"))
}

func TestIgnoreMatcher_BasenameOnly(t *testing.T) {
	m := NewIgnoreMatcher([]string{"*.lock"})
	require.True(t, m.Match("deep/nested/yarn.lock"))
	require.False(t, m.Match("deep/nested/yarn.lockfile"))
}

func TestIgnoreMatcher_Monotone(t *testing.T) {
	p1 := []string{"*.log"}
	p2 := append(append([]string{}, p1...), "*.tmp")
	m1 := NewIgnoreMatcher(p1)
	m2 := NewIgnoreMatcher(p2)
	paths := []string{"a.log", "a.tmp", "a.go"}
	for _, p := range paths {
		if m1.Match(p) {
			require.True(t, m2.Match(p), "adding patterns must not un-ignore %s", p)
		}
	}
}

func TestFilter_Include(t *testing.T) {
	dir := t.TempDir()
	f := New(dir, nil, []string{"vendor/", "*.generated.go"})

	require.True(t, f.Include(filepath.Join(dir, "main.go")))
	require.False(t, f.Include(filepath.Join(dir, "main.txt")))
	require.False(t, f.Include(filepath.Join(dir, "vendor", "pkg", "a.go")))
	require.False(t, f.Include(filepath.Join(dir, "thing.generated.go")))
}

func TestFilter_ShouldSkipDir(t *testing.T) {
	dir := t.TempDir()
	f := New(dir, nil, nil)

	require.True(t, f.ShouldSkipDir(filepath.Join(dir, "node_modules")))
	require.True(t, f.ShouldSkipDir(filepath.Join(dir, ".git")))
	require.False(t, f.ShouldSkipDir(filepath.Join(dir, "src")))
}

func TestMergePatterns_Dedup(t *testing.T) {
	out := MergePatterns([]string{"a", "b"}, []string{"b", "c"})
	require.Equal(t, []string{"a", "b", "c"}, out)
}

func TestWalk_SkipsIgnoredDirsAndHonorsFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "b.go"), []byte("package b"), 0o644))

	f := New(dir, nil, nil)
	var seen []string
	err := Walk(dir, f, nil, func(rec model.FileRecord) error {
		seen = append(seen, rec.RelPath)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"src/a.go"}, seen)
}
