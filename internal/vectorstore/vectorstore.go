// Package vectorstore defines the Vector Store external collaborator (spec
// §6.2) and a Qdrant-backed driver. The interface is consumed-only per spec
// §1 scope note, but a concrete driver ships anyway, as the teacher does for
// its own vector.VectorDatabase, so the module is runnable end-to-end.
package vectorstore

import "context"

// SearchOptions bounds a single search call (spec §6.2 search).
type SearchOptions struct {
	TopK      int
	Threshold float32 // results strictly below this score are dropped
	Filter    Filter  // optional, passed through untouched to the driver
}

// Filter is the small expression language spec §4.8 describes: conjunctions
// over file_extension membership and exact relative-path equality. Drivers
// translate it into their own filter syntax.
type Filter struct {
	Extensions   []string // file_extension must be one of these, if non-empty
	RelativePath string   // exact relative_path match, if non-empty
}

// Empty reports whether the filter has no constraints.
func (f Filter) Empty() bool {
	return len(f.Extensions) == 0 && f.RelativePath == ""
}

// Document is a single record handed to Insert (spec §3 Vector Document).
type Document struct {
	ID            string
	Vector        []float32
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      map[string]any
}

// Result is a single ranked hit returned from Search (spec §6.2).
type Result struct {
	ID            string
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      map[string]any
	Score         float32
}

// Store is the Vector Store capability set spec §6.2 requires.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	CollectionDimension(ctx context.Context, name string) (int, error)
	Insert(ctx context.Context, name string, docs []Document) error
	Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]Result, error)
	Delete(ctx context.Context, name string, ids []string) error
	// Query performs a path-predicate scan used by the Reconciler (spec §4.9)
	// to find every point whose relative_path equals path, for deletion by ID.
	Query(ctx context.Context, name string, relativePath string, limit int) ([]Result, error)
}
