package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
	"github.com/codeindexer/indexer/internal/snapshot"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// fakeStore and fakeEmbedder are hand-written test doubles (spec §1.4
// ambient test-tooling note: no mocking framework, simple interface fakes).

type fakeStore struct {
	collections map[string]int
	docs        map[string][]vectorstore.Document
	failInsert  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string]int{}, docs: map[string][]vectorstore.Document{}}
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	f.collections[name] = dimension
	return nil
}
func (f *fakeStore) DropCollection(ctx context.Context, name string) error {
	delete(f.collections, name)
	delete(f.docs, name)
	return nil
}
func (f *fakeStore) HasCollection(ctx context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}
func (f *fakeStore) CollectionDimension(ctx context.Context, name string) (int, error) {
	return f.collections[name], nil
}
func (f *fakeStore) Insert(ctx context.Context, name string, docs []vectorstore.Document) error {
	if f.failInsert {
		return assertErr
	}
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

var assertErr = errString("insert failed")

type errString string

func (e errString) Error() string { return string(e) }

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

func TestPrepareCollection_CreatesWhenAbsent(t *testing.T) {
	store := newFakeStore()
	embed := &fakeEmbedder{dim: 4}
	p := New(store, embed, nil, nil, DefaultConfig())

	require.NoError(t, p.PrepareCollection(context.Background(), "code_chunks_abc"))
	require.Equal(t, 4, store.collections["code_chunks_abc"])
}

func TestPrepareCollection_SchemaMismatch(t *testing.T) {
	store := newFakeStore()
	store.collections["code_chunks_abc"] = 99
	embed := &fakeEmbedder{dim: 4}
	p := New(store, embed, nil, nil, DefaultConfig())

	err := p.PrepareCollection(context.Background(), "code_chunks_abc")
	require.Error(t, err)
}

func TestIndexAll_IndexesFilesAndInserts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b\n\nfunc B() {}\n"), 0o644))

	store := newFakeStore()
	embed := &fakeEmbedder{dim: 4}
	snapDir := t.TempDir()
	snaps := snapshot.NewStore(snapDir, nil)
	cfg := DefaultConfig()
	p := New(store, embed, snaps, nil, cfg)

	filter := pathfilter.New(dir, nil, nil)
	require.NoError(t, p.PrepareCollection(context.Background(), "code_chunks_test"))

	result, err := p.IndexAll(context.Background(), dir, "code_chunks_test", filter, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.IndexedFiles)
	require.Greater(t, result.TotalChunks, 0)
	require.Equal(t, model.StatusCompleted, result.Status)
	require.Len(t, store.docs["code_chunks_test"], result.TotalChunks)

	snap, err := snaps.Load(dir)
	require.NoError(t, err)
	require.Contains(t, snap.Hashes, "a.go")
	require.Contains(t, snap.Hashes, "b.go")
}

func TestIndexAll_GlobalChunkCapStopsEarly(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(name, []byte("package p\n\nfunc F() {}\n"), 0o644))
	}

	store := newFakeStore()
	embed := &fakeEmbedder{dim: 4}
	cfg := DefaultConfig()
	cfg.MaxTotalChunks = 1
	cfg.FileBatch = 1
	p := New(store, embed, nil, nil, cfg)

	filter := pathfilter.New(dir, nil, nil)
	result, err := p.IndexAll(context.Background(), dir, "code_chunks_test", filter, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusLimitReached, result.Status)
}

func TestSubBatches_RespectsChunkAndTokenCaps(t *testing.T) {
	chunks := make([]model.Chunk, 0, 10)
	for i := 0; i < 10; i++ {
		chunks = append(chunks, model.Chunk{Content: "x", RelPath: "f.go"})
	}
	groups, dropped := subBatches(chunks, 3, 1_000_000, 1_000_000, nil)
	require.Len(t, groups, 4) // ceil(10/3)
	require.Empty(t, dropped)
	for _, g := range groups[:3] {
		require.Len(t, g, 3)
	}

	// Each "x" estimates to 1 token, so a 2-token budget yields groups of 2.
	tokenGroups, _ := subBatches(chunks, 100, 2, 1_000_000, nil)
	require.Len(t, tokenGroups, 5)
}

func TestSubBatches_DropsOversizeChunk(t *testing.T) {
	chunks := []model.Chunk{
		{Content: "small", RelPath: "f.go"},
		{Content: string(make([]byte, 10_000)), RelPath: "big.go"},
	}
	groups, dropped := subBatches(chunks, 100, 1_000_000, 100, nil)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	require.Equal(t, 1, total)
	require.Equal(t, []string{"big.go"}, dropped)
}

func TestIndexAll_InsertFailureExcludesFileFromSnapshotAndReportsSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	store := newFakeStore()
	store.failInsert = true
	embed := &fakeEmbedder{dim: 4}
	snapDir := t.TempDir()
	snaps := snapshot.NewStore(snapDir, nil)
	p := New(store, embed, snaps, nil, DefaultConfig())

	filter := pathfilter.New(dir, nil, nil)
	require.NoError(t, p.PrepareCollection(context.Background(), "code_chunks_test"))

	result, err := p.IndexAll(context.Background(), dir, "code_chunks_test", filter, nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.TotalChunks)
	require.Contains(t, result.SkippedFiles, "a.go")
	require.Empty(t, store.docs["code_chunks_test"])

	snap, err := snaps.Load(dir)
	require.NoError(t, err)
	require.NotContains(t, snap.Hashes, "a.go")
}

func TestEmbedAndInsert_RecordsCodebasePathMetadataAsRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	store := newFakeStore()
	embed := &fakeEmbedder{dim: 4}
	p := New(store, embed, nil, nil, DefaultConfig())

	filter := pathfilter.New(dir, nil, nil)
	require.NoError(t, p.PrepareCollection(context.Background(), "code_chunks_test"))

	_, err := p.IndexAll(context.Background(), dir, "code_chunks_test", filter, nil)
	require.NoError(t, err)

	require.NotEmpty(t, store.docs["code_chunks_test"])
	for _, d := range store.docs["code_chunks_test"] {
		require.Equal(t, dir, d.Metadata["codebase_path"])
	}
}
