package listings

import "strings"

// Filter narrows a fetched listing slice by a free-text query: a
// case-insensitive substring match over title, description and category.
// It is pure and idempotent — filtering an already-filtered slice with the
// same query returns an equal slice.
func Filter(items []Listing, query string) []Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}

	out := make([]Listing, 0, len(items))
	for _, l := range items {
		if strings.Contains(strings.ToLower(l.Title), q) ||
			strings.Contains(strings.ToLower(l.Description), q) ||
			strings.Contains(strings.ToLower(l.Category), q) {
			out = append(out, l)
		}
	}
	return out
}
