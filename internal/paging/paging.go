// Package paging holds the page request and page result types shared by the
// location catalog and the query endpoints.
package paging

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidQuery is returned for a negative page, a non-positive size or a
// page whose offset does not fit in an int.
var ErrInvalidQuery = errors.New("invalid page query")

// Query selects one zero-based page of a fixed size.
type Query struct {
	Page int
	Size int
}

// NewQuery validates page and size.
func NewQuery(page, size int) (Query, error) {
	q := Query{Page: page, Size: size}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate reports whether q can be used for a lookup.
func (q Query) Validate() error {
	if q.Page < 0 {
		return fmt.Errorf("%w: page must be >= 0, got %d", ErrInvalidQuery, q.Page)
	}
	if q.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidQuery, q.Size)
	}
	if q.Page > math.MaxInt/q.Size {
		return fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidQuery, q.Page, q.Size)
	}
	return nil
}

// Offset is the index of the first element of the page.
func (q Query) Offset() int {
	return q.Page * q.Size
}

// Next returns the query for the following page.
func (q Query) Next() Query {
	return Query{Page: q.Page + 1, Size: q.Size}
}

// Result is one page of T. The content slice is owned by the Result.
type Result[T any] struct {
	page          int
	size          int
	totalElements int
	hasNext       bool
	content       []T
}

// NewResult copies content and derives HasNext from the total.
func NewResult[T any](q Query, content []T, totalElements int) Result[T] {
	if totalElements < 0 {
		totalElements = 0
	}
	copied := make([]T, len(content))
	copy(copied, content)
	return Result[T]{
		page:          q.Page,
		size:          q.Size,
		totalElements: totalElements,
		hasNext:       q.Offset()+len(copied) < totalElements,
		content:       copied,
	}
}

// Map converts the content of r while keeping its paging metadata.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	content := make([]U, len(r.content))
	for i, item := range r.content {
		content[i] = fn(item)
	}
	return Result[U]{
		page:          r.page,
		size:          r.size,
		totalElements: r.totalElements,
		hasNext:       r.hasNext,
		content:       content,
	}
}

// WithContent returns a page with r's metadata and a copy of content in
// place of r's items.
func WithContent[T, U any](r Result[T], content []U) Result[U] {
	copied := make([]U, len(content))
	copy(copied, content)
	return Result[U]{
		page:          r.page,
		size:          r.size,
		totalElements: r.totalElements,
		hasNext:       r.hasNext,
		content:       copied,
	}
}

func (r Result[T]) Page() int          { return r.page }
func (r Result[T]) Size() int          { return r.size }
func (r Result[T]) TotalElements() int { return r.totalElements }
func (r Result[T]) HasNext() bool      { return r.hasNext }
func (r Result[T]) Len() int           { return len(r.content) }

// Content returns a copy of the page items.
func (r Result[T]) Content() []T {
	out := make([]T, len(r.content))
	copy(out, r.content)
	return out
}
