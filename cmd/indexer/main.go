// Command indexer is the CLI entry point: load configuration, wire the
// Qdrant store and Ollama-compatible embedder, and run index, reindex, or
// search against one configured repository. Grounded in the teacher's
// cmd/main.go flag/zap-logger setup (bot-go), generalized from its
// build-index-only CLI mode to the Orchestrator's full surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codeindexer/indexer/internal/config"
	"github.com/codeindexer/indexer/internal/embedder"
	"github.com/codeindexer/indexer/internal/model"
	"github.com/codeindexer/indexer/internal/orchestrator"
	"github.com/codeindexer/indexer/internal/pipeline"
	"github.com/codeindexer/indexer/internal/vectorstore"
)

// stringSliceFlag allows a flag to be repeated, matching the teacher's
// cmd/main.go stringSliceFlag.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	var sourceConfigPath = flag.String("source", "source.yaml", "path to source configuration file")
	var appConfigPath = flag.String("app", "app.yaml", "path to app configuration file")
	var repoName = flag.String("repo", "", "repository name from source.yaml to operate on")
	var mode = flag.String("mode", "index", "one of: index, reindex, search, clear")
	var queryText = flag.String("query", "", "query text when -mode=search")
	var topK = flag.Int("top-k", 10, "number of results to return for search")
	var ignorePatterns stringSliceFlag
	flag.Var(&ignorePatterns, "ignore", "additional ignore pattern (repeatable)")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.InfoLevel)
	cfgZap.OutputPaths = []string{"stdout"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*appConfigPath, *sourceConfigPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if *repoName == "" {
		logger.Fatal("-repo is required")
	}
	repo, err := cfg.GetRepository(*repoName)
	if err != nil {
		logger.Fatal("repository lookup failed", zap.Error(err))
	}

	store, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, logger)
	if err != nil {
		logger.Fatal("failed to connect to vector store", zap.Error(err))
	}

	embed, err := embedder.NewOllama(embedder.OllamaConfig{
		APIURL:    cfg.Embedder.URL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize embedder", zap.Error(err))
	}

	pipelineCfg := pipeline.Config{
		FileBatch:         cfg.Chunking.FileBatch,
		MaxChunksPerBatch: cfg.Chunking.MaxChunksPerBatch,
		MaxTokensPerBatch: cfg.Chunking.MaxTokensPerBatch,
		MaxTokensPerChunk: cfg.Chunking.MaxTokensPerChunk,
		MaxTotalChunks:    cfg.Chunking.MaxTotalChunks,
		ChunkSize:         cfg.Chunking.ChunkSize,
		ChunkOverlap:      cfg.Chunking.ChunkOverlap,
	}

	orch := orchestrator.New(store, embed, cfg.App.SnapshotDir, repo.Extensions, pipelineCfg, logger)
	if len(repo.Ignore) > 0 {
		orch.UpdateIgnorePatterns(repo.Ignore)
	}
	if len(ignorePatterns) > 0 {
		orch.UpdateIgnorePatterns(ignorePatterns)
	}

	ctx := context.Background()

	switch *mode {
	case "index":
		bar := progressbar.Default(-1, "indexing "+repo.Name)
		result, err := orch.Index(ctx, repo.Path, progressCallback(bar))
		if err != nil {
			logger.Fatal("index failed", zap.Error(err))
		}
		fmt.Printf("indexed %d files, %d chunks, status=%s\n", result.IndexedFiles, result.TotalChunks, result.Status)

	case "reindex":
		bar := progressbar.Default(-1, "reindexing "+repo.Name)
		result, err := orch.ReindexByChange(ctx, repo.Path, progressCallback(bar))
		if err != nil {
			logger.Fatal("reindex failed", zap.Error(err))
		}
		fmt.Printf("added=%d modified=%d removed=%d\n", result.Added, result.Modified, result.Removed)

	case "search":
		if *queryText == "" {
			logger.Fatal("-query is required for -mode=search")
		}
		results, err := orch.Search(ctx, repo.Path, *queryText, *topK, 0, vectorstore.Filter{})
		if err != nil {
			logger.Fatal("search failed", zap.Error(err))
		}
		for _, r := range results {
			fmt.Printf("%.4f  %s:%d-%d\n%s\n\n", r.Score, r.RelativePath, r.StartLine, r.EndLine, r.Content)
		}

	case "clear":
		if err := orch.Clear(ctx, repo.Path, nil); err != nil {
			logger.Fatal("clear failed", zap.Error(err))
		}
		fmt.Println("cleared")

	default:
		logger.Fatal("unknown -mode", zap.String("mode", *mode))
		os.Exit(2)
	}
}

func progressCallback(bar *progressbar.ProgressBar) model.ProgressFunc {
	return func(p model.Progress) {
		bar.Describe(fmt.Sprintf("%s (%d/%d)", p.Phase, p.Current, p.Total))
		_ = bar.Set(int(p.Percentage))
	}
}
