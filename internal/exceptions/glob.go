// Package exceptions implements the administrator allow-list for
// governance findings: fnmatch-style glob patterns matched against a
// changeset's (file, id, author) triple.
package exceptions

// Match reports whether name matches an fnmatch-style glob pattern:
//
//	*        any run of characters, including path separators
//	?        any single character
//	[abc]    character set
//	[a-z]    character range
//	[!...]   negated set or range
//
// The semantics are deliberately OS-independent; in particular `*`
// crosses `/`, so "db/*.xml" covers nested paths the way changelog
// entries in version control are spelled. An empty pattern matches only
// an empty name. An unterminated `[` matches a literal `[`.
func Match(pattern, name string) bool {
	p := []rune(pattern)
	n := []rune(name)

	pi, ni := 0, 0
	star, starN := -1, 0

	for ni < len(n) {
		switch {
		case pi < len(p) && p[pi] == '*':
			// Record the backtrack point; try matching zero characters first.
			star, starN = pi, ni
			pi++
		case pi < len(p) && matchSingle(p, &pi, n[ni]):
			ni++
		case star >= 0:
			// Extend the most recent * by one character and retry.
			starN++
			pi, ni = star+1, starN
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// matchSingle matches one name rune against the pattern element at *pi,
// advancing *pi past the element. On failure the caller either
// backtracks (resetting *pi) or fails outright, so *pi need not be
// restored.
func matchSingle(p []rune, pi *int, r rune) bool {
	switch p[*pi] {
	case '?':
		*pi++
		return true
	case '[':
		return matchClass(p, pi, r)
	default:
		ok := p[*pi] == r
		*pi++
		return ok
	}
}

// matchClass matches r against a [...] character class starting at *pi.
func matchClass(p []rune, pi *int, r rune) bool {
	i := *pi + 1

	negate := false
	if i < len(p) && (p[i] == '!' || p[i] == '^') {
		negate = true
		i++
	}

	matched := false
	first := true
	for i < len(p) && (p[i] != ']' || first) {
		first = false
		lo := p[i]
		hi := lo
		i++
		if i+1 < len(p) && p[i] == '-' && p[i+1] != ']' {
			hi = p[i+1]
			i += 2
		}
		if lo <= r && r <= hi {
			matched = true
		}
	}

	if i >= len(p) {
		// No closing bracket: fnmatch treats the '[' as a literal.
		*pi++
		return r == '['
	}

	*pi = i + 1
	return matched != negate
}
