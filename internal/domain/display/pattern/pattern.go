// Package pattern resolves a concrete index name to the most specific
// matching wildcard index pattern.
package pattern

import (
	"regexp"
	"strings"
)

type compiled struct {
	pattern string
	re      *regexp.Regexp
}

// Index is a compiled, immutable set of index patterns.
type Index struct {
	entries []compiled
}

// Build compiles patterns in the given order. Order matters only for
// equal-length ties in Resolve: the earlier pattern wins.
// Duplicate patterns are compiled once.
func Build(patterns []string) *Index {
	idx := &Index{entries: make([]compiled, 0, len(patterns))}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		idx.entries = append(idx.entries, compiled{pattern: p, re: Compile(p)})
	}
	return idx
}

// Compile returns a matcher that accepts the entire index name when it
// matches p with every '*' standing for zero or more arbitrary characters.
func Compile(p string) *regexp.Regexp {
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^(?s:" + strings.Join(parts, ".*") + ")$")
}

// Resolve returns the longest pattern matching indexName.
// Reports false when no pattern matches.
func (x *Index) Resolve(indexName string) (string, bool) {
	best := -1
	for i, e := range x.entries {
		if !e.re.MatchString(indexName) {
			continue
		}
		if best < 0 || len(e.pattern) > len(x.entries[best].pattern) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return x.entries[best].pattern, true
}

// Matches returns every pattern matching indexName in build order.
func (x *Index) Matches(indexName string) []string {
	var out []string
	for _, e := range x.entries {
		if e.re.MatchString(indexName) {
			out = append(out, e.pattern)
		}
	}
	return out
}

// Patterns returns the compiled patterns in build order.
func (x *Index) Patterns() []string {
	out := make([]string, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.pattern
	}
	return out
}

// Len returns the number of compiled patterns.
func (x *Index) Len() int { return len(x.entries) }
