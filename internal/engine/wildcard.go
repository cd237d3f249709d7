package engine

import "strings"

// WildcardMatch reports whether text matches the glob pattern. '*' matches
// zero or more characters, '?' matches exactly one. Matching is
// case-insensitive. On a mismatch the matcher backtracks to the most recent
// unconsumed '*' and advances the text cursor by one; with no prior '*' the
// match fails. A trailing run of '*' is consumed after the text is exhausted.
func WildcardMatch(text, pattern string) bool {
	t := []rune(strings.ToLower(text))
	p := []rune(strings.ToLower(pattern))

	i, j := 0, 0
	star := -1
	mark := 0

	for i < len(t) {
		switch {
		case j < len(p) && (p[j] == '?' || p[j] == t[i]):
			i++
			j++
		case j < len(p) && p[j] == '*':
			star = j
			mark = i
			j++
		case star >= 0:
			j = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}

	for j < len(p) && p[j] == '*' {
		j++
	}
	return j == len(p)
}
