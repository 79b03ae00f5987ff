// Package langdetect implements the Language Classifier (spec §4.2, C2): a
// total function mapping a file extension to a canonical language tag.
package langdetect

import "strings"

// byExtension maps a lowercase extension (with leading dot) to a canonical
// language tag. Unknown extensions classify as "text" (spec §4.2).
var byExtension = map[string]string{
	".go":        "go",
	".py":        "python",
	".pyw":       "python",
	".pyi":       "python",
	".js":        "javascript",
	".jsx":       "javascript",
	".mjs":       "javascript",
	".cjs":       "javascript",
	".ts":        "typescript",
	".tsx":       "typescript",
	".mts":       "typescript",
	".cts":       "typescript",
	".java":      "java",
	".c":         "c",
	".h":         "c",
	".cpp":       "cpp",
	".cc":        "cpp",
	".cxx":       "cpp",
	".hpp":       "cpp",
	".hxx":       "cpp",
	".cs":        "csharp",
	".rs":        "rust",
	".php":       "php",
	".rb":        "ruby",
	".swift":     "swift",
	".kt":        "kotlin",
	".kts":       "kotlin",
	".scala":     "scala",
	".sc":        "scala",
	".m":         "objective-c",
	".mm":        "objective-c",
	".md":        "markdown",
	".markdown":  "markdown",
}

// Text is the catch-all language tag for unrecognized extensions.
const Text = "text"

// Classify maps an extension (case-insensitive, with or without a leading
// dot) to its canonical language tag. Always returns a value: Text for
// anything not in the closed enumeration.
func Classify(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	if lang, ok := byExtension[ext]; ok {
		return lang
	}
	return Text
}

// Known returns whether ext maps to a language other than the text fallback.
func Known(ext string) bool {
	return Classify(ext) != Text
}
