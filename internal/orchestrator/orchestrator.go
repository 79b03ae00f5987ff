// Package orchestrator is the public façade (spec §6.3, C10): index,
// reindexByChange, search, clear, hasIndex, updateIgnorePatterns. It
// exclusively owns the Snapshot and the current Ignore Pattern Set (spec §3
// Ownership) and translates every component error into the ierr taxonomy
// before returning to callers (spec §7 Propagation).
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/embedder"
	"github.com/codeindexer/indexer/internal/identity"
	"github.com/codeindexer/indexer/internal/ierr"
	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/pathfilter"
	"github.com/codeindexer/indexer/internal/pipeline"
	"github.com/codeindexer/indexer/internal/query"
	"github.com/codeindexer/indexer/internal/reconcile"
	"github.com/codeindexer/indexer/internal/snapshot"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// Orchestrator is the entry point a host application embeds.
type Orchestrator struct {
	store      vectorstore.Store
	embed      embedder.Embedder
	snapshots  *snapshot.Store
	query      *query.Query
	logger     *zap.Logger
	cfg        pipeline.Config
	extensions []string

	mu       sync.Mutex // guards extraIgnore (spec §3 Ownership)
	extraIgnore []string
}

// New builds an Orchestrator. snapshotDir is the directory snapshot files
// are persisted under; extensions is the file-extension allowlist (empty
// uses pathfilter.DefaultExtensions).
func New(store vectorstore.Store, embed embedder.Embedder, snapshotDir string, extensions []string, cfg pipeline.Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		embed:      embed,
		snapshots:  snapshot.NewStore(snapshotDir, logger),
		query:      query.New(store, embed, logger),
		logger:     logger,
		cfg:        cfg,
		extensions: extensions,
	}
}

// UpdateIgnorePatterns unions extra with the current set and deduplicates
// (spec §6.3 update_ignore_patterns).
func (o *Orchestrator) UpdateIgnorePatterns(extra []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraIgnore = pathfilter.MergePatterns(o.extraIgnore, extra)
}

func (o *Orchestrator) filter(root string) *pathfilter.Filter {
	o.mu.Lock()
	patterns := append([]string{}, o.extraIgnore...)
	o.mu.Unlock()
	return pathfilter.New(root, o.extensions, patterns)
}

// Index implements spec §6.3 index(root, progress).
func (o *Orchestrator) Index(ctx context.Context, root string, progress model.ProgressFunc) (model.IndexResult, error) {
	collection, err := identity.CollectionName(root)
	if err != nil {
		return model.IndexResult{}, ierr.New(ierr.ConfigError, err)
	}

	p := pipeline.New(o.store, o.embed, o.snapshots, o.logger, o.cfg)
	if err := p.PrepareCollection(ctx, collection); err != nil {
		return model.IndexResult{}, err
	}

	result, err := p.IndexAll(ctx, root, collection, o.filter(root), progress)
	if err != nil {
		return result, translateComponentError(err)
	}
	return result, nil
}

// ReindexByChange implements spec §6.3 reindex_by_change(root, progress).
func (o *Orchestrator) ReindexByChange(ctx context.Context, root string, progress model.ProgressFunc) (model.ReconcileResult, error) {
	collection, err := identity.CollectionName(root)
	if err != nil {
		return model.ReconcileResult{}, ierr.New(ierr.ConfigError, err)
	}

	if err := o.requireCollection(ctx, collection); err != nil {
		return model.ReconcileResult{}, err
	}

	// The pipeline used by the Reconciler is constructed without a snapshot
	// store: the Reconciler owns the single save at the end of the run
	// (spec §4.9 step 6), not a per-batch update.
	p := pipeline.New(o.store, o.embed, nil, o.logger, o.cfg)
	r := reconcile.New(p, o.store, o.snapshots, o.logger)

	result, err := r.ReindexByChange(ctx, root, collection, o.filter(root), progress)
	if err != nil {
		return result, translateComponentError(err)
	}
	return result, nil
}

// Search implements spec §6.3 search(root, query, top_k, threshold, filter?).
func (o *Orchestrator) Search(ctx context.Context, root, text string, topK int, threshold float32, filter vectorstore.Filter) ([]model.SearchResult, error) {
	results, err := o.query.Search(ctx, root, text, topK, threshold, filter)
	if err != nil {
		return nil, translateComponentError(err)
	}
	return results, nil
}

// HasIndex implements spec §6.3 has_index(root).
func (o *Orchestrator) HasIndex(ctx context.Context, root string) (bool, error) {
	collection, err := identity.CollectionName(root)
	if err != nil {
		return false, ierr.New(ierr.ConfigError, err)
	}
	exists, err := o.store.HasCollection(ctx, collection)
	if err != nil {
		return false, ierr.TranslateStoreError(err)
	}
	return exists, nil
}

// Clear implements spec §6.3 clear(root, progress): drops the collection and
// deletes the snapshot, returning the Indexer lifecycle to Uninitialized
// (spec §4.10).
func (o *Orchestrator) Clear(ctx context.Context, root string, progress model.ProgressFunc) error {
	collection, err := identity.CollectionName(root)
	if err != nil {
		return ierr.New(ierr.ConfigError, err)
	}

	model.ReportProgress(progress, model.PhaseClearing, 0, 1)
	exists, err := o.store.HasCollection(ctx, collection)
	if err != nil {
		return ierr.TranslateStoreError(err)
	}
	if exists {
		if err := o.store.DropCollection(ctx, collection); err != nil {
			return ierr.TranslateStoreError(err)
		}
	}
	if err := o.snapshots.Delete(root); err != nil {
		return translateComponentError(fmt.Errorf("delete snapshot: %w", err))
	}
	model.ReportProgress(progress, model.PhaseClearing, 1, 1)
	return nil
}

func (o *Orchestrator) requireCollection(ctx context.Context, collection string) error {
	exists, err := o.store.HasCollection(ctx, collection)
	if err != nil {
		return ierr.TranslateStoreError(err)
	}
	if !exists {
		return ierr.Newf(ierr.ConfigError, "no index exists for collection %s; call Index first", collection)
	}
	return nil
}

// translateComponentError converts any error the pipeline/reconciler/query
// returns into the ierr taxonomy, leaving already-typed errors untouched
// (spec §7 Propagation).
func translateComponentError(err error) error {
	if err == nil {
		return nil
	}
	if ierr.KindOf(err) != ierr.Unknown {
		return err
	}
	return ierr.New(ierr.ResourceError, err)
}
