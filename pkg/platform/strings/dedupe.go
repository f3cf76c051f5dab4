// Package strings holds small string-slice helpers shared across packages.
package strings

import (
	"strings"
)

// Dedupe trims each value, applies fold when it is non-nil, and drops empty
// and repeated results. First occurrences keep their order. The result is
// never nil.
func Dedupe(values []string, fold func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeFold is Dedupe with lowercasing, for case-insensitive sets.
func DedupeFold(values []string) []string {
	return Dedupe(values, strings.ToLower)
}
