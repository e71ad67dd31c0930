// Package paging aggregates cursor-paginated list results into one result.
package paging

import "context"

// FetchFunc fetches a single page. The first page is requested with an
// empty cursor.
type FetchFunc[P any] func(ctx context.Context, cursor string) (P, error)

// Pager describes how to walk a page type P carrying items of type T
type Pager[P any, T any] struct {
	// Fetch retrieves one page
	Fetch FetchFunc[P]

	// Cursor extracts the next cursor; an empty cursor ends the walk
	Cursor func(page P) string

	// Items extracts the page's items; a nil slice is treated as empty
	Items func(page P) []T

	// SetItems writes the aggregated items back into the first page
	SetItems func(page P, items []T) P
}

// All fetches every page and returns the first page with the items of all
// pages merged into it, in page order. A single page result is returned
// untouched.
//
// The remote API guarantees cursors terminate; a cursor that keeps returning
// itself is not guarded against.
func (p Pager[P, T]) All(ctx context.Context) (P, error) {
	first, err := p.Fetch(ctx, "")
	if err != nil {
		return first, err
	}

	cursor := p.Cursor(first)
	if cursor == "" {
		return first, nil
	}

	items := append([]T(nil), p.Items(first)...)
	for cursor != "" {
		page, err := p.Fetch(ctx, cursor)
		if err != nil {
			return first, err
		}
		if pageItems := p.Items(page); len(pageItems) > 0 {
			items = append(items, pageItems...)
		}
		cursor = p.Cursor(page)
	}

	return p.SetItems(first, items), nil
}
