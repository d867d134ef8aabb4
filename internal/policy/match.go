package policy

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

var patternCache sync.Map // string -> glob.Glob

// MatchLike reports whether value matches pattern, where '*' matches any run
// of characters and '?' matches exactly one. All other characters are literal.
func MatchLike(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == value
	}
	if g, ok := patternCache.Load(pattern); ok {
		return g.(glob.Glob).Match(value)
	}
	g, err := glob.Compile(quoteLiterals(pattern))
	if err != nil {
		return false
	}
	patternCache.Store(pattern, g)
	return g.Match(value)
}

// matchFold is MatchLike ignoring case, as used for action names.
func matchFold(pattern, value string) bool {
	return MatchLike(strings.ToLower(pattern), strings.ToLower(value))
}

// quoteLiterals escapes every glob metacharacter except the two wildcards.
func quoteLiterals(pattern string) string {
	var b strings.Builder
	start := 0
	for i, r := range pattern {
		if r != '*' && r != '?' {
			continue
		}
		b.WriteString(glob.QuoteMeta(pattern[start:i]))
		b.WriteRune(r)
		start = i + 1
	}
	b.WriteString(glob.QuoteMeta(pattern[start:]))
	return b.String()
}
