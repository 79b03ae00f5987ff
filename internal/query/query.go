// Package query implements the Query Path (spec §4.8, C8): embed a query
// string, call the store, and map results into the public result shape.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/embedder"
	"github.com/codeindexer/indexer/internal/identity"
	"github.com/codeindexer/indexer/internal/ierr"
	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// Query answers search(root, query, top_k, threshold, filter?) (spec §4.8).
type Query struct {
	store  vectorstore.Store
	embed  embedder.Embedder
	logger *zap.Logger
}

func New(store vectorstore.Store, embed embedder.Embedder, logger *zap.Logger) *Query {
	return &Query{store: store, embed: embed, logger: logger}
}

// Search resolves collection_name(root), embeds text once, searches, and
// maps hits preserving the store's descending score order (spec §4.8 step 4).
func (q *Query) Search(ctx context.Context, root, text string, topK int, threshold float32, filter vectorstore.Filter) ([]model.SearchResult, error) {
	collection, err := identity.CollectionName(root)
	if err != nil {
		return nil, fmt.Errorf("derive collection name: %w", err)
	}

	exists, err := q.store.HasCollection(ctx, collection)
	if err != nil {
		return nil, ierr.TranslateStoreError(err)
	}
	if !exists {
		return nil, ierr.Newf(ierr.ConfigError, "no index for %s (collection %s does not exist)", root, collection)
	}

	vector, err := q.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := q.store.Search(ctx, collection, vector, vectorstore.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
		Filter:    filter,
	})
	if err != nil {
		return nil, ierr.TranslateStoreError(err)
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, model.SearchResult{
			Content:      h.Content,
			RelativePath: h.RelativePath,
			StartLine:    h.StartLine,
			EndLine:      h.EndLine,
			Language:     languageOf(h.Metadata),
			Score:        h.Score,
		})
	}
	return results, nil
}

func languageOf(metadata map[string]any) string {
	if v, ok := metadata["language"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
