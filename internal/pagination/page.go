// Package pagination holds the page-shaped values passed between the storage layer
// and the HTTP layer: the incoming Request and the immutable PageResult.
package pagination

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidArgument marks paging values that can never describe a well-formed page.
var ErrInvalidArgument = errors.New("invalid argument")

// PageResult is one page of query results plus the metadata a client needs to navigate.
// Fields are set once by New and never change; List hands out copies.
type PageResult[T any] struct {
	pageNum  int
	pageSize int
	total    int64
	list     []T
}

// New builds a page snapshot. The list is copied, so the producer may reuse its slice.
func New[T any](pageNum, pageSize int, total int64, list []T) (PageResult[T], error) {
	switch {
	case pageNum < 0:
		return PageResult[T]{}, fmt.Errorf("%w: pageNum must be >= 0, got %d", ErrInvalidArgument, pageNum)
	case pageSize < 0:
		return PageResult[T]{}, fmt.Errorf("%w: pageSize must be >= 0, got %d", ErrInvalidArgument, pageSize)
	case total < 0:
		return PageResult[T]{}, fmt.Errorf("%w: total must be >= 0, got %d", ErrInvalidArgument, total)
	case len(list) > pageSize:
		return PageResult[T]{}, fmt.Errorf("%w: list has %d items, page size is %d", ErrInvalidArgument, len(list), pageSize)
	}
	items := make([]T, len(list))
	copy(items, list)
	return PageResult[T]{pageNum: pageNum, pageSize: pageSize, total: total, list: items}, nil
}

// Empty returns a page with no items and a zero total. Negative values are clamped to 0.
func Empty[T any](pageNum, pageSize int) PageResult[T] {
	return PageResult[T]{pageNum: max(pageNum, 0), pageSize: max(pageSize, 0), list: []T{}}
}

func (p PageResult[T]) PageNum() int  { return p.pageNum }
func (p PageResult[T]) PageSize() int { return p.pageSize }
func (p PageResult[T]) Total() int64  { return p.total }
func (p PageResult[T]) Len() int      { return len(p.list) }

// List returns a copy of the page items in query order.
func (p PageResult[T]) List() []T {
	out := make([]T, len(p.list))
	copy(out, p.list)
	return out
}

// TotalPages is ceil(total / pageSize); zero when pageSize is zero.
func (p PageResult[T]) TotalPages() int64 {
	if p.pageSize <= 0 {
		return 0
	}
	size := int64(p.pageSize)
	n := p.total / size
	if p.total%size != 0 {
		n++
	}
	return n
}

// HasNext reports whether a page after this one exists, assuming 1-based page numbers.
func (p PageResult[T]) HasNext() bool { return int64(p.pageNum) < p.TotalPages() }

// HasPrev reports whether a page before this one exists, assuming 1-based page numbers.
func (p PageResult[T]) HasPrev() bool { return p.pageNum > 1 }

// Map projects every item through fn, keeping order and metadata.
func Map[T, U any](p PageResult[T], fn func(T) U) PageResult[U] {
	items := make([]U, len(p.list))
	for i, it := range p.list {
		items[i] = fn(it)
	}
	return PageResult[U]{pageNum: p.pageNum, pageSize: p.pageSize, total: p.total, list: items}
}

type wirePage[T any] struct {
	PageNum  int   `json:"pageNum"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	List     []T   `json:"list"`
}

// MarshalJSON writes the page using the public wire names; list is never null.
func (p PageResult[T]) MarshalJSON() ([]byte, error) {
	list := p.list
	if list == nil {
		list = []T{}
	}
	return json.Marshal(wirePage[T]{PageNum: p.pageNum, PageSize: p.pageSize, Total: p.total, List: list})
}

// UnmarshalJSON decodes the wire shape and applies the same checks as New.
func (p *PageResult[T]) UnmarshalJSON(data []byte) error {
	var w wirePage[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	res, err := New(w.PageNum, w.PageSize, w.Total, w.List)
	if err != nil {
		return err
	}
	*p = res
	return nil
}
