package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params holds 1-based page parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps page to at least 1 and page size to (0, MaxPageSize],
// substituting the default for a non-positive size.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// FromContext reads page and page_size from the query string. Malformed
// values fall back to defaults.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return Params{Page: page, PageSize: size}.Normalize()
}

// Info describes one page of a larger result.
type Info struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HasNext reports whether a page follows this one.
func (i Info) HasNext() bool {
	return i.Page < i.TotalPages
}

// Page is a slice of items with its position in the full result.
type Page[T any] struct {
	Items []T `json:"items"`
	Info
}

// TotalPages is ceil(total/size); zero items yield zero pages.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Slice returns the requested page of items. A page past the end yields an
// empty, non-nil slice.
func Slice[T any](items []T, p Params) Page[T] {
	p = p.Normalize()
	total := len(items)
	info := Info{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: TotalPages(total, p.PageSize),
	}

	start := (p.Page - 1) * p.PageSize
	if start >= total {
		return Page[T]{Items: []T{}, Info: info}
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return Page[T]{Items: items[start:end], Info: info}
}
