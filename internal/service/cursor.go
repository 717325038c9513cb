package service

import "strings"

// compareIDs orders platform post ids, which are unsigned decimal strings
// too large for lexical comparison alone.
func compareIDs(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// maxID returns the largest of the non-empty ids.
func maxID(ids ...string) string {
	var best string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if best == "" || compareIDs(id, best) > 0 {
			best = id
		}
	}
	return best
}
