package splitter

import (
	"strings"

	"github.com/codeindexer/indexer/internal/model"
)

// separatorLadder is the language-agnostic separator cascade spec §4.4
// names: paragraph, line, sentence, word, grapheme. Each entry is tried in
// order; splitRecursive descends to the next separator only when a segment
// still exceeds chunkSize after splitting on the current one.
var separatorLadder = []string{"\n\n", "\n", ". ", " ", ""}

// SplitFallback implements the Fallback Splitter (spec §4.4): a recursive
// character splitter with a language-independent separator ladder, target
// size chunkSize, and overlap chunkOverlap (clamped to chunkSize-1). Line
// numbers are estimated by locating the chunk prefix in the original file
// and counting newlines, so it also serves languages with no tree-sitter
// grammar and files where the grammar failed to parse (spec §4.3 step 2).
func SplitFallback(code []byte, language, filePath, relPath string, chunkSize, chunkOverlap int) ([]model.Chunk, error) {
	text := string(code)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	pieces := splitRecursive(text, chunkSize, 0)
	pieces = mergeWithOverlap(pieces, chunkSize, chunkOverlap)

	chunks := make([]model.Chunk, 0, len(pieces))
	searchFrom := 0
	for _, p := range pieces {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		start, end, newFrom := locateLines(text, p, searchFrom)
		searchFrom = newFrom
		chunks = append(chunks, model.Chunk{
			Content:   trimmed,
			Language:  language,
			FilePath:  filePath,
			RelPath:   relPath,
			StartLine: start,
			EndLine:   end,
		})
	}

	assignChunkIndex(chunks)
	return chunks, nil
}

// splitRecursive descends the separator ladder starting at level, splitting
// text into pieces no longer than chunkSize wherever possible. A piece that
// cannot be split further (ladder exhausted) is returned as-is even if
// oversize, since a grapheme-level split would not reduce its size.
func splitRecursive(text string, chunkSize, level int) []string {
	if len(text) <= chunkSize || level >= len(separatorLadder) {
		return []string{text}
	}

	sep := separatorLadder[level]
	var parts []string
	if sep == "" {
		parts = splitByRune(text, chunkSize)
	} else {
		parts = strings.Split(text, sep)
		for i := 0; i < len(parts)-1; i++ {
			parts[i] += sep
		}
	}

	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	for _, part := range parts {
		if len(part) > chunkSize {
			flush()
			out = append(out, splitRecursive(part, chunkSize, level+1)...)
			continue
		}
		if buf.Len()+len(part) > chunkSize {
			flush()
		}
		buf.WriteString(part)
	}
	flush()

	return out
}

// splitByRune is the grapheme-level last resort: break text into
// chunkSize-byte windows on rune boundaries.
func splitByRune(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}
	var out []string
	runes := []rune(text)
	var buf strings.Builder
	for _, r := range runes {
		if buf.Len()+len(string(r)) > chunkSize && buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// mergeWithOverlap merges tiny adjacent pieces up toward chunkSize and
// prepends the configured overlap from the previous piece, matching spec
// §4.4's overlap requirement without re-splitting already-sized pieces.
func mergeWithOverlap(pieces []string, chunkSize, overlap int) []string {
	if len(pieces) == 0 {
		return pieces
	}

	merged := make([]string, 0, len(pieces))
	var buf strings.Builder
	for _, p := range pieces {
		if buf.Len() > 0 && buf.Len()+len(p) > chunkSize {
			merged = append(merged, buf.String())
			buf.Reset()
		}
		buf.WriteString(p)
	}
	if buf.Len() > 0 {
		merged = append(merged, buf.String())
	}

	if overlap <= 0 || len(merged) < 2 {
		return merged
	}

	out := make([]string, len(merged))
	out[0] = merged[0]
	for i := 1; i < len(merged); i++ {
		prev := merged[i-1]
		tail := prev
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		out[i] = tail + merged[i]
	}
	return out
}

// locateLines estimates the 1-based inclusive line range of piece within
// text by locating its prefix (including any overlap carried over from the
// previous piece, with leading newlines trimmed) starting the search at
// searchFrom, then counting newlines up to that point and within it.
func locateLines(text, piece string, searchFrom int) (start, end, nextFrom int) {
	probe := piece
	if len(probe) > 64 {
		probe = probe[:64]
	}
	idx := strings.Index(text[searchFrom:], strings.TrimLeft(probe, "\n"))
	if idx < 0 {
		idx = 0
	} else {
		idx += searchFrom
	}

	start = strings.Count(text[:idx], "\n") + 1
	end = start + strings.Count(piece, "\n")
	nextFrom = idx + 1
	if nextFrom > len(text) {
		nextFrom = len(text)
	}
	return start, end, nextFrom
}
