// Package pipeline implements the Indexing Pipeline (spec §4.7, C7):
// walk -> filter -> split -> batch -> embed -> insert, under per-batch
// token/chunk caps, reporting progress and updating the snapshot only for
// files whose chunks were fully embedded and inserted. Grounded in the
// teacher's CodeChunkService.ProcessDirectory/generateAndPrepareEmbeddings
// batching idiom, generalized to the sub-batch caps spec §4.7 names.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/embedder"
	"github.com/codeindexer/indexer/internal/identity"
	"github.com/codeindexer/indexer/internal/ierr"
	"github.com/codeindexer/indexer/internal/langdetect"
	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
	"github.com/codeindexer/indexer/internal/snapshot"
	"github.com/codeindexer/indexer/internal/splitter"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// maxEmbedAttempts and retryBaseDelay bound the exponential backoff applied
// to a sub-batch's embed/insert calls before it is dropped (spec §7,
// ResourceError: "retryable with exponential backoff at the sub-batch
// level, finite attempts; on exhaustion, drop sub-batch and continue").
const (
	maxEmbedAttempts = 3
	retryBaseDelay   = 50 * time.Millisecond
)

// Config bounds a single pipeline run (spec §4.7 step 3, and "Global chunk
// cap").
type Config struct {
	FileBatch         int // files processed together before a snapshot/progress checkpoint
	MaxChunksPerBatch int // embedding sub-batch chunk cap
	MaxTokensPerBatch int // embedding sub-batch estimated-token cap
	MaxTokensPerChunk int // a chunk above this is skipped with a warning
	MaxTotalChunks    int // run-wide chunk cap; reaching it halts with limit_reached
	ChunkSize         int
	ChunkOverlap      int
}

// DefaultConfig matches the defaults spec §4.7 names.
func DefaultConfig() Config {
	return Config{
		FileBatch:         10,
		MaxChunksPerBatch: 100,
		MaxTokensPerBatch: 200_000,
		MaxTokensPerChunk: 250_000,
		MaxTotalChunks:    450_000,
		ChunkSize:         1000,
		ChunkOverlap:      0,
	}
}

// Pipeline ties the Vector Store, Embedder, and Snapshot Store together to
// realize spec §4.7.
type Pipeline struct {
	store     vectorstore.Store
	embed     embedder.Embedder
	snapshots *snapshot.Store
	logger    *zap.Logger
	cfg       Config
}

// New builds a Pipeline. cfg is not validated here: a non-positive
// FileBatch makes indexing fail with a ConfigError, and a non-positive
// ChunkSize makes every file fail to split (each is reported as skipped).
func New(store vectorstore.Store, embed embedder.Embedder, snapshots *snapshot.Store, logger *zap.Logger, cfg Config) *Pipeline {
	return &Pipeline{store: store, embed: embed, snapshots: snapshots, logger: logger, cfg: cfg}
}

// PrepareCollection implements spec §4.7 step 1: create the collection with
// the embedder's dimension if absent, else verify the existing dimension
// matches (mismatch is a fatal SchemaMismatch).
func (p *Pipeline) PrepareCollection(ctx context.Context, name string) error {
	exists, err := p.store.HasCollection(ctx, name)
	if err != nil {
		return ierr.TranslateStoreError(err)
	}
	if !exists {
		if err := p.store.CreateCollection(ctx, name, p.embed.Dimension()); err != nil {
			return ierr.TranslateStoreError(err)
		}
		return nil
	}

	dim, err := p.store.CollectionDimension(ctx, name)
	if err != nil {
		return ierr.TranslateStoreError(err)
	}
	if dim != p.embed.Dimension() {
		return ierr.Newf(ierr.SchemaMismatch,
			"collection %s has dimension %d, embedder produces %d", name, dim, p.embed.Dimension())
	}
	return nil
}

// IndexAll walks the filtered tree rooted at root and indexes every included
// file (spec §4.7 full run, used by Orchestrator.Index).
func (p *Pipeline) IndexAll(ctx context.Context, root, collection string, filter *pathfilter.Filter, progress model.ProgressFunc) (model.IndexResult, error) {
	var records []model.FileRecord
	err := pathfilter.Walk(root, filter, p.logger, func(rec model.FileRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return model.IndexResult{}, fmt.Errorf("walk %s: %w", root, err)
	}
	return p.indexRecords(ctx, root, collection, records, progress)
}

// IndexPaths indexes only the given codebase-root-relative paths (spec §4.9
// step 5, "run the indexing pipeline restricted to that set").
func (p *Pipeline) IndexPaths(ctx context.Context, root, collection string, relPaths []string, filter *pathfilter.Filter, progress model.ProgressFunc) (model.IndexResult, error) {
	records := make([]model.FileRecord, 0, len(relPaths))
	for _, rel := range relPaths {
		abs := filter.AbsPath(rel)
		info, err := os.Stat(abs)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("skipping path missing on disk", zap.String("path", rel), zap.Error(err))
			}
			continue
		}
		records = append(records, model.FileRecord{
			AbsPath: abs,
			RelPath: rel,
			Ext:     pathfilter.ExtOf(rel),
			Size:    info.Size(),
		})
	}
	return p.indexRecords(ctx, root, collection, records, progress)
}

func (p *Pipeline) indexRecords(ctx context.Context, root, collection string, records []model.FileRecord, progress model.ProgressFunc) (model.IndexResult, error) {
	if p.cfg.FileBatch <= 0 {
		return model.IndexResult{}, ierr.Newf(ierr.ConfigError, "pipeline: file batch must be positive, got %d", p.cfg.FileBatch)
	}
	result := model.IndexResult{Status: model.StatusCompleted}
	totalChunks := 0
	totalBatches := (len(records) + p.cfg.FileBatch - 1) / p.cfg.FileBatch
	if totalBatches == 0 {
		totalBatches = 1
	}
	skipped := make(map[string]bool)

	for i := 0; i < len(records); i += p.cfg.FileBatch {
		if err := ctx.Err(); err != nil {
			return result, ierr.New(ierr.CancelRequested, err)
		}

		end := i + p.cfg.FileBatch
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		chunks, hashes, processedFiles, readSkipped := p.readAndSplit(batch)
		for _, rel := range readSkipped {
			skipped[rel] = true
		}

		failedPaths := map[string]bool{}
		if len(chunks) > 0 {
			inserted, failed, err := p.embedAndInsert(ctx, root, collection, chunks, progress)
			if err != nil {
				result.SkippedFiles = sortedKeys(skipped)
				return result, err
			}
			totalChunks += inserted
			failedPaths = failed
			for rel := range failedPaths {
				skipped[rel] = true
			}
		}

		// Snapshot update only reflects files whose chunks were fully
		// embedded and inserted (spec §4.7 step 4, failure semantics): a
		// file that appears in failedPaths keeps whatever hash the
		// snapshot already had, so the next run treats it as still
		// pending.
		if p.snapshots != nil {
			snap, err := p.snapshots.Load(root)
			if err != nil {
				return result, fmt.Errorf("load snapshot for batch update: %w", err)
			}
			for rel, hash := range hashes {
				if failedPaths[rel] {
					continue
				}
				snap.Hashes[rel] = hash
			}
			if err := p.snapshots.Save(snap); err != nil {
				return result, fmt.Errorf("save snapshot after batch: %w", err)
			}
		}

		result.IndexedFiles += processedFiles
		model.ReportProgress(progress, model.PhaseIndexing, i/p.cfg.FileBatch+1, totalBatches)

		if totalChunks >= p.cfg.MaxTotalChunks {
			result.Status = model.StatusLimitReached
			result.TotalChunks = totalChunks
			result.SkippedFiles = sortedKeys(skipped)
			return result, nil
		}
	}

	result.TotalChunks = totalChunks
	result.SkippedFiles = sortedKeys(skipped)
	return result, nil
}

// readAndSplit reads and splits every file in batch, returning the combined
// chunk list L (spec §4.7 step 3b), the content hash of each successfully
// processed file, a count of files that produced no fatal error, and the
// relative paths of files skipped for an unreadable or unsplittable reason.
func (p *Pipeline) readAndSplit(batch []model.FileRecord) ([]model.Chunk, map[string]string, int, []string) {
	var all []model.Chunk
	hashes := make(map[string]string, len(batch))
	processed := 0
	var skipped []string

	for _, rec := range batch {
		content, err := os.ReadFile(rec.AbsPath)
		if err != nil {
			p.warn("skipping unreadable file", rec.RelPath, err)
			skipped = append(skipped, rec.RelPath)
			continue
		}

		language := langdetect.Classify(rec.Ext)
		chunks, err := splitter.Split(content, language, rec.AbsPath, rec.RelPath, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
		if err != nil {
			p.warn("skipping file with split error", rec.RelPath, err)
			skipped = append(skipped, rec.RelPath)
			continue
		}

		all = append(all, chunks...)
		hashes[rec.RelPath] = snapshot.HashBytes(content)
		processed++
	}

	return all, hashes, processed, skipped
}

// embedAndInsert partitions chunks into sub-batches honoring both the chunk
// and token caps (spec §4.7 step 3c), embeds and inserts each sub-batch with
// a bounded retry, and returns the count of chunks actually inserted plus
// the set of relative paths with at least one chunk that never made it into
// the store (oversize, or a sub-batch dropped after exhausting retries).
func (p *Pipeline) embedAndInsert(ctx context.Context, root, collection string, chunks []model.Chunk, progress model.ProgressFunc) (int, map[string]bool, error) {
	inserted := 0
	failed := make(map[string]bool)

	groups, dropped := subBatches(chunks, p.cfg.MaxChunksPerBatch, p.cfg.MaxTokensPerBatch, p.cfg.MaxTokensPerChunk, p.logger)
	for _, path := range dropped {
		failed[path] = true
	}

	for gi, sub := range groups {
		model.ReportProgress(progress, model.PhaseEmbedding, gi, len(groups))
		if len(sub) == 0 {
			continue
		}
		texts := make([]string, len(sub))
		for i, c := range sub {
			texts[i] = c.Content
		}

		var vectors [][]float32
		embedErr := p.withRetry(ctx, func() error {
			v, err := p.embed.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(v) != len(sub) {
				return fmt.Errorf("got %d vectors for %d chunks", len(v), len(sub))
			}
			vectors = v
			return nil
		})
		if embedErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return inserted, failed, ierr.New(ierr.CancelRequested, ctxErr)
			}
			p.warn("dropping sub-batch after embedding failure", collection, embedErr)
			markFailed(failed, sub)
			continue
		}

		docs := make([]vectorstore.Document, len(sub))
		for i, c := range sub {
			docs[i] = vectorstore.Document{
				ID:            identity.ChunkID(c.RelPath, c.StartLine, c.EndLine, c.Content),
				Vector:        vectors[i],
				Content:       c.Content,
				RelativePath:  c.RelPath,
				StartLine:     c.StartLine,
				EndLine:       c.EndLine,
				FileExtension: extOf(c.RelPath),
				Metadata: map[string]any{
					"codebase_path": root,
					"language":      c.Language,
					"chunk_index":   c.ChunkIndex,
				},
			}
		}

		insertErr := p.withRetry(ctx, func() error {
			return p.store.Insert(ctx, collection, docs)
		})
		if insertErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return inserted, failed, ierr.New(ierr.CancelRequested, ctxErr)
			}
			p.warn("dropping sub-batch after insert failure", collection, insertErr)
			markFailed(failed, sub)
			continue
		}
		inserted += len(docs)
	}

	return inserted, failed, nil
}

func markFailed(failed map[string]bool, sub []model.Chunk) {
	for _, c := range sub {
		failed[c.RelPath] = true
	}
}

// withRetry runs fn up to maxEmbedAttempts times with exponential backoff
// between attempts, returning fn's last error if every attempt failed (spec
// §7, ResourceError retry policy).
func (p *Pipeline) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt < maxEmbedAttempts-1 {
			timer := time.NewTimer(retryBaseDelay * time.Duration(1<<attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}

func (p *Pipeline) warn(msg, key string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, zap.String("path", key), zap.Error(err))
	}
}

func extOf(relPath string) string {
	return pathfilter.ExtOf(relPath)
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
