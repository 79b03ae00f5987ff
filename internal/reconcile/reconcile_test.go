package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindexer/indexer/internal/pathfilter"
	"github.com/codeindexer/indexer/internal/pipeline"
	"github.com/codeindexer/indexer/internal/snapshot"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

type fakeStore struct {
	collections map[string]int
	docs        map[string][]vectorstore.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string]int{}, docs: map[string][]vectorstore.Document{}}
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	f.collections[name] = dimension
	return nil
}
func (f *fakeStore) DropCollection(ctx context.Context, name string) error { return nil }
func (f *fakeStore) HasCollection(ctx context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}
func (f *fakeStore) CollectionDimension(ctx context.Context, name string) (int, error) {
	return f.collections[name], nil
}
func (f *fakeStore) Insert(ctx context.Context, name string, docs []vectorstore.Document) error {
	f.docs[name] = append(f.docs[name], docs...)
	return nil
}
func (f *fakeStore) Search(ctx context.Context, name string, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.Result, error) {
	return nil, nil
}
func (f *fakeStore) Delete(ctx context.Context, name string, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []vectorstore.Document
	for _, d := range f.docs[name] {
		if !idSet[d.ID] {
			kept = append(kept, d)
		}
	}
	f.docs[name] = kept
	return nil
}
func (f *fakeStore) Query(ctx context.Context, name, relativePath string, limit int) ([]vectorstore.Result, error) {
	var out []vectorstore.Result
	for _, d := range f.docs[name] {
		if d.RelativePath == relativePath {
			out = append(out, vectorstore.Result{ID: d.ID, RelativePath: d.RelativePath})
		}
	}
	return out, nil
}

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func TestReindexByChange_AddModifyRemove(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.go")
	pathB := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(pathA, []byte("package a\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("package b\n\nfunc B() {}\n"), 0o644))

	store := newFakeStore()
	embed := &fakeEmbedder{dim: 4}
	snapDir := t.TempDir()
	snaps := snapshot.NewStore(snapDir, nil)

	const collection = "code_chunks_test"
	require.NoError(t, store.CreateCollection(context.Background(), collection, 4))

	filter := pathfilter.New(dir, nil, nil)
	p := pipeline.New(store, embed, nil, nil, pipeline.DefaultConfig())
	r := New(p, store, snaps, nil)

	// First reconcile call against an empty previous snapshot indexes both files.
	result, err := r.ReindexByChange(context.Background(), dir, collection, filter, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Added)
	require.Equal(t, 0, result.Modified)
	require.Equal(t, 0, result.Removed)
	require.NotEmpty(t, store.docs[collection])

	// Modify a.go, remove b.go, add c.go.
	require.NoError(t, os.WriteFile(pathA, []byte("package a\n\nfunc A() { _ = 1 }\n"), 0o644))
	require.NoError(t, os.Remove(pathB))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.go"), []byte("package c\n\nfunc C() {}\n"), 0o644))

	result, err = r.ReindexByChange(context.Background(), dir, collection, filter, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)
	require.Equal(t, 1, result.Modified)
	require.Equal(t, 1, result.Removed)

	for _, d := range store.docs[collection] {
		require.NotEqual(t, "b.go", d.RelativePath)
	}

	snap, err := snaps.Load(dir)
	require.NoError(t, err)
	require.NotContains(t, snap.Hashes, "b.go")
	require.Contains(t, snap.Hashes, "a.go")
	require.Contains(t, snap.Hashes, "c.go")
}
