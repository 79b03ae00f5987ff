// Package model defines the data entities shared across the indexer:
// file records, chunks, vector documents, and snapshots (spec §3).
package model

// FileRecord is a single file discovered by the walker. Transient: built per
// walk and dropped once the file has been processed.
type FileRecord struct {
	AbsPath string
	RelPath string // forward-slash normalized, relative to the codebase root
	Ext     string // lowercase, with leading dot
	Size    int64
}

// Chunk is a contiguous, line-aligned slice of one file, the unit of
// embedding and retrieval.
type Chunk struct {
	Content  string
	Language string
	FilePath string // absolute path of the source file
	RelPath  string // forward-slash normalized relative path

	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	// NodeType is the syntactic category from the AST when the chunk came
	// from the AST Splitter (e.g. "function_declaration"). Empty for
	// fallback-splitter chunks.
	NodeType string

	// ChunkIndex is the chunk's position within the file, assigned once all
	// of a file's chunks are known, in source order.
	ChunkIndex int
}

// VectorDocument is what gets stored in the vector database: a chunk plus
// its embedding and the metadata the store needs to filter/report on it.
type VectorDocument struct {
	ID            string
	Vector        []float32
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      map[string]any
}

// SearchResult is a single ranked hit returned from the query path (spec §4.8).
type SearchResult struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	Language     string
	Score        float32
}

// Snapshot is the persisted per-codebase state enabling incremental sync
// (spec §3 Snapshot, §6.4).
type Snapshot struct {
	Root      string            `json:"root"`
	Hashes    map[string]string `json:"hashes"` // relative path -> hex content hash
	CreatedAt int64             `json:"created_at"` // unix seconds
}

// NewSnapshot builds an empty snapshot rooted at root.
func NewSnapshot(root string, createdAt int64) *Snapshot {
	return &Snapshot{
		Root:      root,
		Hashes:    make(map[string]string),
		CreatedAt: createdAt,
	}
}

// DiffResult is the output of comparing two snapshots (spec §4.5 diff).
type DiffResult struct {
	Added    []string
	Modified []string
	Removed  []string
}

// IndexStatus reports the terminal state of an Index() call (spec §4.7).
type IndexStatus string

const (
	StatusCompleted    IndexStatus = "completed"
	StatusLimitReached IndexStatus = "limit_reached"
)

// IndexResult is returned by Orchestrator.Index (spec §6.3).
type IndexResult struct {
	IndexedFiles int
	TotalChunks  int
	Status       IndexStatus
	SkippedFiles []string
}

// ReconcileResult is returned by Orchestrator.ReindexByChange (spec §6.3).
type ReconcileResult struct {
	Added    int
	Modified int
	Removed  int
}

// ProgressPhase names the stage a Progress report describes.
type ProgressPhase string

const (
	PhaseWalking   ProgressPhase = "walking"
	PhaseHashing   ProgressPhase = "hashing"
	PhaseIndexing  ProgressPhase = "indexing"
	PhaseEmbedding ProgressPhase = "embedding"
	PhaseDeleting  ProgressPhase = "deleting"
	PhaseClearing  ProgressPhase = "clearing"
)

// Progress is reported between file batches and between embedding
// sub-batches (spec §5). Callbacks receiving it must be non-blocking.
type Progress struct {
	Phase      ProgressPhase
	Current    int
	Total      int
	Percentage float64
}

// ProgressFunc is the callback shape accepted by every long-running
// Orchestrator operation.
type ProgressFunc func(Progress)

// ReportProgress invokes fn if non-nil, computing the percentage itself so
// callers never divide by zero.
func ReportProgress(fn ProgressFunc, phase ProgressPhase, current, total int) {
	if fn == nil {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	fn(Progress{Phase: phase, Current: current, Total: total, Percentage: pct})
}
