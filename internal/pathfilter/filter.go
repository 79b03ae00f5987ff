// Package pathfilter implements the Path Filter (spec §4.1, C1): deciding
// per-path inclusion from an extension allowlist and a glob-style ignore
// list, and the default directory-skip policy used while walking.
package pathfilter

import (
	"path/filepath"
	"strings"
)

// DefaultIgnoreDirs is the fixed built-in set of common vendor/build
// directories skipped during traversal regardless of the ignore pattern
// set, grounded on the teacher's CodeChunkService.shouldSkipDirectory and
// util.ShouldSkipDirectory default lists (spec §4.1, §3 SUPPLEMENTED FEATURES).
var DefaultIgnoreDirs = []string{
	".git", ".svn", ".hg",
	".env", ".venv", "venv", "env",
	"node_modules", "vendor", "target", "build", "dist", "bin", "obj",
	"__pycache__", ".idea", ".vscode", ".pytest_cache", ".mypy_cache", ".tox",
	"coverage", ".next", ".nuxt", "out", "site-packages", ".cache", "tmp", "temp",
}

// DefaultExtensions is the extension allowlist merged with user-supplied
// extensions; it covers the languages langdetect classifies (spec §4.2).
var DefaultExtensions = []string{
	".go", ".py", ".pyw", ".pyi",
	".js", ".jsx", ".mjs", ".cjs",
	".ts", ".tsx", ".mts", ".cts",
	".java", ".c", ".h", ".cpp", ".cc", ".cxx", ".hpp", ".hxx",
	".cs", ".rs", ".php", ".rb", ".swift", ".kt", ".kts", ".scala",
	".m", ".mm", ".md", ".markdown",
}

// Filter decides, for an absolute path under a codebase root, whether it
// should be included in indexing.
type Filter struct {
	root       string
	extensions map[string]bool
	ignore     *IgnoreMatcher
	skipDirs   map[string]bool
}

// New builds a Filter for the given root. extensions should already include
// the leading dot; an empty slice falls back to DefaultExtensions.
// ignorePatterns is used as given: there is no default ignore pattern list
// (the built-in DefaultIgnoreDirs are applied separately by ShouldSkipDir),
// and the Orchestrator accumulates user patterns via MergePatterns.
func New(root string, extensions []string, ignorePatterns []string) *Filter {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}

	skipDirs := make(map[string]bool, len(DefaultIgnoreDirs))
	for _, d := range DefaultIgnoreDirs {
		skipDirs[d] = true
	}

	return &Filter{
		root:       filepath.Clean(root),
		extensions: extSet,
		ignore:     NewIgnoreMatcher(ignorePatterns),
		skipDirs:   skipDirs,
	}
}

// RelPath normalizes path relative to the filter's root to forward slashes.
func (f *Filter) RelPath(absPath string) string {
	rel, err := filepath.Rel(f.root, absPath)
	if err != nil {
		rel = absPath
	}
	return filepath.ToSlash(rel)
}

// AbsPath resolves a forward-slash relative path back to an absolute path
// under the filter's root, the inverse of RelPath.
func (f *Filter) AbsPath(relPath string) string {
	return filepath.Join(f.root, filepath.FromSlash(relPath))
}

// ExtOf returns the lowercase extension (with leading dot) of a path.
func ExtOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Include decides per-path inclusion per spec §4.1's three-step algorithm.
func (f *Filter) Include(absPath string) bool {
	rel := f.RelPath(absPath)
	if f.ignore.Match(rel) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	return f.extensions[ext]
}

// ShouldSkipDir reports whether traversal should skip absPath entirely:
// a built-in vendor/build directory, or a dot-prefixed entry (default deny
// for dot-entries per spec §4.1), or one matched by the ignore set.
func (f *Filter) ShouldSkipDir(absPath string) bool {
	base := filepath.Base(absPath)
	if f.skipDirs[base] {
		return true
	}
	if len(base) > 0 && base[0] == '.' && base != "." && base != ".." {
		return true
	}
	rel := f.RelPath(absPath)
	if f.ignore.Match(rel) {
		return true
	}
	return f.ignore.Match(rel + "/")
}

// Extensions returns the allowlist currently in effect.
func (f *Filter) Extensions() []string {
	out := make([]string, 0, len(f.extensions))
	for e := range f.extensions {
		out = append(out, e)
	}
	return out
}

// IgnorePatterns returns the raw ignore patterns currently in effect.
func (f *Filter) IgnorePatterns() []string {
	return f.ignore.Patterns()
}
