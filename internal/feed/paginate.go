package feed

import "strconv"

// PageSize is the fixed feed page length.
const PageSize = 10

// Paginate slices ranked into the page starting at cursor. nextCursor is
// nil once the page reaches the end of the list. Stale cursors past the
// end yield an empty page, not an error.
func Paginate(ranked []MergedDestination, cursor, pageSize int) ([]MergedDestination, *string) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(ranked) {
		return []MergedDestination{}, nil
	}

	end := cursor + pageSize
	if end >= len(ranked) {
		return ranked[cursor:], nil
	}

	next := strconv.Itoa(end)
	return ranked[cursor:end], &next
}
