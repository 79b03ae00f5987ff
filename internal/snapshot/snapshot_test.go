package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "snapshots"), nil)

	root := filepath.Join(dir, "repo")
	snap := model.NewSnapshot(root, 1234)
	snap.Hashes["a.go"] = "deadbeef"

	require.NoError(t, store.Save(snap))

	loaded, err := store.Load(root)
	require.NoError(t, err)
	require.Equal(t, snap.Root, loaded.Root)
	require.Equal(t, snap.Hashes, loaded.Hashes)
}

func TestLoad_AbsentIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "snapshots"), nil)

	snap, err := store.Load(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	require.Empty(t, snap.Hashes)
}

func TestDelete_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "snapshots"), nil)
	root := filepath.Join(dir, "repo")

	require.NoError(t, store.Delete(root))
	require.NoError(t, store.Save(model.NewSnapshot(root, 1)))
	require.NoError(t, store.Delete(root))
	require.NoError(t, store.Delete(root))

	snap, err := store.Load(root)
	require.NoError(t, err)
	require.Empty(t, snap.Hashes)
}

func TestDiff(t *testing.T) {
	prev := model.NewSnapshot("/r", 0)
	prev.Hashes["a.go"] = "h1"
	prev.Hashes["b.go"] = "h2"
	prev.Hashes["c.go"] = "h3"

	curr := model.NewSnapshot("/r", 0)
	curr.Hashes["a.go"] = "h1"      // unchanged
	curr.Hashes["b.go"] = "h2-new"  // modified
	curr.Hashes["d.go"] = "h4"      // added
	// c.go removed

	diff := Diff(prev, curr)
	require.ElementsMatch(t, []string{"d.go"}, diff.Added)
	require.ElementsMatch(t, []string{"b.go"}, diff.Modified)
	require.ElementsMatch(t, []string{"c.go"}, diff.Removed)
}

func TestInitialize_HashesIncludedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "b.go"), []byte("package b"), 0o644))

	store := NewStore(t.TempDir(), nil)
	filter := pathfilter.New(dir, nil, nil)

	snap, err := store.Initialize(dir, filter)
	require.NoError(t, err)
	require.Contains(t, snap.Hashes, "a.go")
	require.NotContains(t, snap.Hashes, "node_modules/b.go")

	want, err := HashFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Equal(t, want, snap.Hashes["a.go"])
}

func TestHashFile_SameContentSameHash(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "x.go")
	p2 := filepath.Join(dir, "y.go")
	require.NoError(t, os.WriteFile(p1, []byte("identical"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("identical"), 0o644))

	h1, err := HashFile(p1)
	require.NoError(t, err)
	h2, err := HashFile(p2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Equal(t, h1, HashBytes([]byte("identical")))
}
