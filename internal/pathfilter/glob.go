package pathfilter

import (
	"regexp"
	"strings"
)

// globToRegexp converts the small glob subset spec §4.1/§9 allows (`*`,
// `**`, `?`) into an anchored regular expression. Deliberately hand-rolled
// instead of importing a general glob library: the spec's §9 design note
// warns that a general-purpose glob engine would let matching semantics
// drift away from this documented subset.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			if strings.ContainsRune(`\.+()|[]{}^$`, c) {
				b.WriteByte('\\')
			}
			b.WriteRune(c)
		}
	}
	b.WriteByte('$')

	return regexp.Compile(b.String())
}
