// Package reconcile implements the Reconciler (spec §4.9, C9):
// diff the persisted snapshot against the live tree, delete stale vectors
// by path predicate, and reindex only the files that changed.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
	"github.com/codeindexer/indexer/internal/pipeline"
	"github.com/codeindexer/indexer/internal/snapshot"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// Reconciler runs reindex_by_change (spec §4.9). Its pipeline must be
// constructed without a snapshot store (snapshots: nil) so that the
// Reconciler, not the pipeline, owns the single save at the end of the run.
type Reconciler struct {
	pipeline  *pipeline.Pipeline
	store     vectorstore.Store
	snapshots *snapshot.Store
	logger    *zap.Logger
}

func New(p *pipeline.Pipeline, store vectorstore.Store, snapshots *snapshot.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{pipeline: p, store: store, snapshots: snapshots, logger: logger}
}

// ReindexByChange implements spec §4.9 steps 1-7.
func (r *Reconciler) ReindexByChange(ctx context.Context, root, collection string, filter *pathfilter.Filter, progress model.ProgressFunc) (model.ReconcileResult, error) {
	previous, err := r.snapshots.Load(root)
	if err != nil {
		return model.ReconcileResult{}, fmt.Errorf("load previous snapshot: %w", err)
	}

	current, err := r.snapshots.Initialize(root, filter)
	if err != nil {
		return model.ReconcileResult{}, fmt.Errorf("hash current tree: %w", err)
	}

	diff := snapshot.Diff(previous, current)

	toDelete := append(append([]string{}, diff.Removed...), diff.Modified...)
	model.ReportProgress(progress, model.PhaseDeleting, 0, len(toDelete))
	for i, path := range toDelete {
		if err := ctx.Err(); err != nil {
			return model.ReconcileResult{}, err
		}
		if err := r.deleteByPath(ctx, collection, path); err != nil {
			return model.ReconcileResult{}, err
		}
		model.ReportProgress(progress, model.PhaseDeleting, i+1, len(toDelete))
	}

	toReindex := append(append([]string{}, diff.Added...), diff.Modified...)
	if len(toReindex) > 0 {
		indexResult, err := r.pipeline.IndexPaths(ctx, root, collection, toReindex, filter, progress)
		if err != nil {
			return model.ReconcileResult{}, err
		}
		// A file whose chunks never fully reached the store keeps its old
		// hash (or none at all) so the next reconcile pass picks it back up
		// as added/modified instead of silently treating it as in sync.
		for _, path := range indexResult.SkippedFiles {
			if prevHash, ok := previous.Hashes[path]; ok {
				current.Hashes[path] = prevHash
			} else {
				delete(current.Hashes, path)
			}
		}
	}

	if err := r.snapshots.Save(current); err != nil {
		return model.ReconcileResult{}, fmt.Errorf("save snapshot after reconcile: %w", err)
	}

	return model.ReconcileResult{
		Added:    len(diff.Added),
		Modified: len(diff.Modified),
		Removed:  len(diff.Removed),
	}, nil
}

// deleteByPath finds every vector whose relative_path equals path (store-side
// predicate, spec §4.9 step 4) and deletes it by ID.
func (r *Reconciler) deleteByPath(ctx context.Context, collection, path string) error {
	rows, err := r.store.Query(ctx, collection, path, 0)
	if err != nil {
		return fmt.Errorf("query vectors for path %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := r.store.Delete(ctx, collection, ids); err != nil {
		return fmt.Errorf("delete vectors for path %s: %w", path, err)
	}
	if r.logger != nil {
		r.logger.Info("deleted stale vectors", zap.String("path", path), zap.Int("count", len(ids)))
	}
	return nil
}
