package permissions

import "strings"

// Wildcard is the marker character denoting a prefix grant in a stored
// resource pattern.
const Wildcard = "*"

// stripWildcards removes wildcard markers from a stored pattern, collapsing
// a "/*" segment entirely so "/a/b/*" reduces to "/a/b" and "/a/*/c" to
// "/a/c".
func stripWildcards(pattern string) string {
	stripped := strings.ReplaceAll(pattern, "/"+Wildcard, "")
	return strings.ReplaceAll(stripped, Wildcard, "")
}

// Matches reports whether a stored grant pattern authorizes the concrete
// target resource id. A pattern containing a wildcard marker matches any
// target sharing its stripped literal prefix; a pattern without one matches
// only the exact id. This is a literal strip-then-prefix test, not a glob
// engine.
func Matches(pattern, target string) bool {
	if !strings.Contains(pattern, Wildcard) {
		return pattern == target
	}
	return strings.HasPrefix(target, stripWildcards(pattern))
}

// MatchesPrefix reports whether a stored grant pattern is relevant to the
// subtree rooted at prefix: either the grant covers the subtree root, or the
// grant sits somewhere inside the subtree.
func MatchesPrefix(pattern, prefix string) bool {
	root := prefix
	if strings.Contains(root, Wildcard) {
		root = stripWildcards(root)
	}
	if Matches(pattern, root) {
		return true
	}
	literal := pattern
	if strings.Contains(literal, Wildcard) {
		literal = stripWildcards(literal)
	}
	return strings.HasPrefix(literal, root)
}
