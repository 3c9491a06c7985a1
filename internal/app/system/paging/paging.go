// Package paging reads page parameters and shapes offset-paged JSON
// listings.
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a page.
const PageSize = 50

// MaxPageSize caps the "size" parameter.
const MaxPageSize = 200

// Page is a 1-based page number and its size.
type Page struct {
	Number int
	Size   int
}

// Parse extracts the "page" and "size" query parameters. Missing or invalid
// values fall back to page 1 and PageSize.
func Parse(r *http.Request) Page {
	p := Page{
		Number: positive(query.Get(r, "page"), 1),
		Size:   positive(query.Get(r, "size"), PageSize),
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Offset is the number of rows before this page.
func (p Page) Offset() int64 { return int64((p.Number - 1) * p.Size) }

// Limit is the page size as a Mongo limit.
func (p Page) Limit() int64 { return int64(p.Size) }

// Result is one page of a listing.
type Result[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

// NewResult wraps items, the rows of page p out of total. There is always
// at least one page.
func NewResult[T any](p Page, items []T, total int64) Result[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	if pages < 1 {
		pages = 1
	}
	return Result[T]{
		Items:      items,
		Total:      total,
		Page:       p.Number,
		TotalPages: pages,
		HasPrev:    p.Number > 1,
		HasNext:    p.Number < pages,
	}
}
