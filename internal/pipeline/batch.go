package pipeline

import (
	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/model"
)

// estimateTokens approximates the embedder cost of text as ceil(bytes/4),
// the Token budget definition in the GLOSSARY.
func estimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// subBatches partitions chunks into groups honoring maxChunks and
// maxTokens, dropping (with a warning) any single chunk whose estimated
// tokens exceed maxTokensPerChunk before it ever enters a group (spec §4.7
// step 3c). The relative paths of dropped chunks are returned alongside the
// groups so the caller can fold them into the skipped-files report and
// exclude them from the snapshot update.
func subBatches(chunks []model.Chunk, maxChunks, maxTokens, maxTokensPerChunk int, logger *zap.Logger) ([][]model.Chunk, []string) {
	var groups [][]model.Chunk
	var current []model.Chunk
	currentTokens := 0
	var dropped []string

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
	}

	for _, c := range chunks {
		tokens := estimateTokens(c.Content)
		if tokens > maxTokensPerChunk {
			if logger != nil {
				logger.Warn("skipping oversize chunk",
					zap.String("path", c.RelPath), zap.Int("estimated_tokens", tokens))
			}
			dropped = append(dropped, c.RelPath)
			continue
		}

		if len(current) >= maxChunks || currentTokens+tokens > maxTokens {
			flush()
		}
		current = append(current, c)
		currentTokens += tokens
	}
	flush()

	return groups, dropped
}
