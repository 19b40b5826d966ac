package meta

import "strings"

// choptag expands a dot-delimited hierarchical tag into itself and
// every ancestor prefix: "a.b.c" -> ["a", "a.b", "a.b.c"] (spec.md
// §3's Tag glossary entry; grounded on the original source's
// common.chunks-style prefix walk).
func choptag(tag string) []string {
	parts := strings.Split(tag, ".")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "."))
	}
	return out
}
