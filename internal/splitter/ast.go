// Package splitter implements the AST Splitter (spec §4.3, C3) and its
// Fallback Splitter (spec §4.4, C4). Grammars are grounded in the teacher's
// CodeChunkService.parseAndChunk and the pack's ast_chunker.go node-type
// tables; refinement/overlap follow spec §4.3 steps 5–6 exactly.
package splitter

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codeindexer/indexer/internal/model"
)

// grammar pairs a compiled tree-sitter language with the node types that
// count as splittable units for it (spec §4.3 step 3; GLOSSARY "Splittable
// node").
type grammar struct {
	language      *sitter.Language
	splittableSet map[string]bool
}

func nodeSet(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// grammars is built once; tree_sitter.Language values are safe to share
// across parsers (only *sitter.Parser carries mutable state).
var grammars = map[string]grammar{
	"go": {
		language: sitter.NewLanguage(golang.Language()),
		splittableSet: nodeSet(
			"function_declaration",
			"method_declaration",
			"type_declaration",
		),
	},
	"python": {
		language: sitter.NewLanguage(python.Language()),
		splittableSet: nodeSet(
			"function_definition",
			"class_definition",
		),
	},
	"java": {
		language: sitter.NewLanguage(java.Language()),
		splittableSet: nodeSet(
			"class_declaration",
			"interface_declaration",
			"enum_declaration",
			"method_declaration",
			"constructor_declaration",
		),
	},
	"javascript": {
		language: sitter.NewLanguage(javascript.Language()),
		splittableSet: nodeSet(
			"function_declaration",
			"class_declaration",
			"method_definition",
			"arrow_function",
			"function_expression",
		),
	},
	"typescript": {
		language: sitter.NewLanguage(typescript.LanguageTypescript()),
		splittableSet: nodeSet(
			"function_declaration",
			"class_declaration",
			"interface_declaration",
			"type_alias_declaration",
			"method_definition",
			"arrow_function",
			"function_expression",
		),
	},
}

// HasGrammar reports whether language has a wired tree-sitter grammar.
func HasGrammar(language string) bool {
	_, ok := grammars[language]
	return ok
}

// astCandidate is a syntactic unit found during tree traversal, before
// refinement and overlap are applied.
type astCandidate struct {
	content   []byte
	startLine int
	endLine   int
	nodeType  string
}

// parserPool is one process-wide lock held while a freshly created
// *sitter.Parser is configured and run: tree-sitter parsers are not
// thread-safe (spec §5, teacher's parserMutex).
var parserPool sync.Mutex

// SplitAST implements spec §4.3: parse with the language's grammar, emit one
// candidate chunk per splittable node (or the whole file if none), refine
// oversize candidates by lines, then apply overlap. Falls back to the
// Fallback Splitter on a missing grammar or a parse error (step 1–2).
func SplitAST(code []byte, language, filePath, relPath string, chunkSize, chunkOverlap int) ([]model.Chunk, error) {
	g, ok := grammars[language]
	if !ok {
		return SplitFallback(code, language, filePath, relPath, chunkSize, chunkOverlap)
	}

	parserPool.Lock()
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(g.language); err != nil {
		parserPool.Unlock()
		return SplitFallback(code, language, filePath, relPath, chunkSize, chunkOverlap)
	}
	tree := parser.Parse(code, nil)
	parserPool.Unlock()

	if tree == nil {
		return SplitFallback(code, language, filePath, relPath, chunkSize, chunkOverlap)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return SplitFallback(code, language, filePath, relPath, chunkSize, chunkOverlap)
	}

	var candidates []astCandidate
	walkSplittable(root, code, g.splittableSet, &candidates)

	if len(candidates) == 0 {
		candidates = []astCandidate{wholeFileCandidate(code)}
	}

	chunks := make([]model.Chunk, 0, len(candidates))
	for _, c := range candidates {
		chunks = append(chunks, refine(c, language, filePath, relPath, chunkSize)...)
	}

	chunks = dropEmpty(chunks)
	chunks = applyOverlap(chunks, chunkOverlap)
	assignChunkIndex(chunks)
	return chunks, nil
}

// walkSplittable traverses node pre-order, recording a candidate for every
// descendant whose type is in splittable (nested splittable nodes both
// emit — spec §4.3 Tie-breaks).
func walkSplittable(node *sitter.Node, source []byte, splittable map[string]bool, out *[]astCandidate) {
	if node == nil {
		return
	}
	if splittable[node.Kind()] {
		start, end := node.StartByte(), node.EndByte()
		*out = append(*out, astCandidate{
			content:   source[start:end],
			startLine: int(node.StartPosition().Row) + 1,
			endLine:   int(node.EndPosition().Row) + 1,
			nodeType:  node.Kind(),
		})
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkSplittable(node.Child(uint(i)), source, splittable, out)
	}
}

func wholeFileCandidate(code []byte) astCandidate {
	lines := bytes.Count(code, []byte("\n"))
	if len(code) > 0 && code[len(code)-1] != '\n' {
		lines++
	}
	if lines == 0 {
		lines = 1
	}
	return astCandidate{content: code, startLine: 1, endLine: lines, nodeType: ""}
}

// refine splits an oversize candidate by lines, never splitting a line
// (spec §4.3 step 5), preserving start-line accounting.
func refine(c astCandidate, language, filePath, relPath string, chunkSize int) []model.Chunk {
	if chunkSize <= 0 || len(c.content) <= chunkSize {
		return []model.Chunk{{
			Content:   string(bytes.TrimRight(c.content, "\n")),
			Language:  language,
			FilePath:  filePath,
			RelPath:   relPath,
			StartLine: c.startLine,
			EndLine:   c.endLine,
			NodeType:  c.nodeType,
		}}
	}

	lines := bytes.Split(c.content, []byte("\n"))
	var out []model.Chunk
	var buf bytes.Buffer
	lineStart := c.startLine
	lineCount := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, model.Chunk{
			Content:   strings.TrimRight(buf.String(), "\n"),
			Language:  language,
			FilePath:  filePath,
			RelPath:   relPath,
			StartLine: lineStart,
			EndLine:   lineStart + lineCount - 1,
			NodeType:  c.nodeType,
		})
		buf.Reset()
	}

	for i, line := range lines {
		candidateLen := buf.Len() + len(line) + 1
		if buf.Len() > 0 && candidateLen > chunkSize {
			flush()
			lineStart = c.startLine + i
			lineCount = 0
		}
		buf.Write(line)
		buf.WriteByte('\n')
		lineCount++
	}
	flush()

	return out
}

func dropEmpty(chunks []model.Chunk) []model.Chunk {
	out := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			out = append(out, c)
		}
	}
	return out
}

// applyOverlap prepends the last chunkOverlap characters of chunk i-1 to
// chunk i (same file only — callers pass one file's chunks at a time),
// followed by a newline, adjusting start_line by the overlap's newline
// count clamped to >= 1 (spec §4.3 step 6).
func applyOverlap(chunks []model.Chunk, overlap int) []model.Chunk {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		if tail == "" {
			continue
		}
		newlines := strings.Count(tail, "\n")
		shift := newlines
		if shift < 1 {
			shift = 1
		}
		chunks[i].Content = tail + "\n" + chunks[i].Content
		chunks[i].StartLine -= shift
		if chunks[i].StartLine < 1 {
			chunks[i].StartLine = 1
		}
	}
	return chunks
}

func assignChunkIndex(chunks []model.Chunk) {
	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
}

// Split rejects a non-positive chunkSize and otherwise delegates to SplitAST,
// which itself uses SplitFallback when no grammar is wired or parsing fails
// (spec §7 ParseWarning). A fallback is not reported to the caller: the
// returned error is non-nil only for an invalid chunkSize.
func Split(code []byte, language, filePath, relPath string, chunkSize, chunkOverlap int) ([]model.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return SplitAST(code, language, filePath, relPath, chunkSize, chunkOverlap)
}
