package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeindexer/indexer/internal/vectorstore"
)

type fakeStore struct {
	hasCollection bool
	results       []vectorstore.Result
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, dimension int) error { return nil }
func (f *fakeStore) DropCollection(ctx context.Context, name string) error                  { return nil }
func (f *fakeStore) HasCollection(ctx context.Context, name string) (bool, error) {
	return f.hasCollection, nil
}
func (f *fakeStore) CollectionDimension(ctx context.Context, name string) (int, error) { return 4, nil }
func (f *fakeStore) Insert(ctx context.Context, name string, docs []vectorstore.Document) error {
	return nil
}
func (f *fakeStore) Search(ctx context.Context, name string, vector []float32, opts vectorstore.SearchOptions) ([]vectorstore.Result, error) {
	return f.results, nil
}
func (f *fakeStore) Delete(ctx context.Context, name string, ids []string) error { return nil }
func (f *fakeStore) Query(ctx context.Context, name, relativePath string, limit int) ([]vectorstore.Result, error) {
	return nil, nil
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

func TestSearch_ErrorsWithoutCollection(t *testing.T) {
	store := &fakeStore{hasCollection: false}
	q := New(store, &fakeEmbedder{dim: 4}, nil)

	_, err := q.Search(context.Background(), "/repo", "find me", 10, 0, vectorstore.Filter{})
	require.Error(t, err)
}

func TestSearch_MapsResultsPreservingOrder(t *testing.T) {
	store := &fakeStore{
		hasCollection: true,
		results: []vectorstore.Result{
			{Content: "a", RelativePath: "a.go", Score: 0.9, Metadata: map[string]any{"language": "go"}},
			{Content: "b", RelativePath: "b.go", Score: 0.5, Metadata: map[string]any{"language": "go"}},
		},
	}
	q := New(store, &fakeEmbedder{dim: 4}, nil)

	results, err := q.Search(context.Background(), "/repo", "find me", 10, 0, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a.go", results[0].RelativePath)
	require.Equal(t, float32(0.9), results[0].Score)
	require.Equal(t, "go", results[0].Language)
	require.Equal(t, "b.go", results[1].RelativePath)
}
