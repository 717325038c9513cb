package classify

import "engagement_tracker/internal/domain"

// MediaType resolves attachment keys against the page's media lookup.
// Keys missing from the lookup are ignored.
func MediaType(keys []string, lookup map[string]string) domain.MediaType {
	var first string
	for _, key := range keys {
		t, ok := lookup[key]
		if !ok || t == "" {
			continue
		}
		if first == "" {
			first = t
			continue
		}
		if t != first {
			return domain.MediaMixed
		}
	}
	if first == "" {
		return domain.MediaNone
	}
	return domain.MediaType(first)
}
