package pathfilter

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ignoreRule is one compiled entry of an Ignore Pattern Set (spec §3, §4.1).
type ignoreRule struct {
	raw        string
	re         *regexp.Regexp
	isDirRule  bool // pattern ended with "/"
	hasSlash   bool // pattern (minus trailing "/") contains "/"
}

// IgnoreMatcher evaluates a path against an ordered Ignore Pattern Set.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher compiles patterns in order. Invalid patterns are dropped
// rather than failing construction, since ignore patterns are frequently
// user-supplied and a single bad entry should not break indexing.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		isDir := strings.HasSuffix(p, "/")
		body := strings.TrimSuffix(p, "/")
		re, err := globToRegexp(body)
		if err != nil {
			continue
		}
		m.rules = append(m.rules, ignoreRule{
			raw:       p,
			re:        re,
			isDirRule: isDir,
			hasSlash:  strings.Contains(body, "/"),
		})
	}
	return m
}

// Match reports whether rel (already normalized to forward slashes, relative
// to the codebase root) is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	base := filepath.Base(rel)
	segments := strings.Split(rel, "/")

	for _, r := range m.rules {
		switch {
		case r.isDirRule:
			for _, seg := range segments {
				if r.re.MatchString(seg) {
					return true
				}
			}
		case r.hasSlash:
			if r.re.MatchString(rel) {
				return true
			}
		default:
			if r.re.MatchString(base) {
				return true
			}
		}
	}
	return false
}

// Patterns returns the raw pattern strings backing this matcher, in order.
func (m *IgnoreMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.raw
	}
	return out
}

// MergePatterns unions extra into base, deduplicating while preserving the
// order base's patterns are evaluated in (earlier patterns still win no
// differently, since ignore matching is a logical OR over all rules).
func MergePatterns(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, p := range base {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range extra {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
