package table

import "slices"

// PageSizes are the page sizes a table can be switched between.
var PageSizes = []int{10, 30, 50}

// DefaultPageSize is the page size a table starts with.
const DefaultPageSize = 10

// ValidPageSize reports whether size is one of PageSizes.
func ValidPageSize(size int) bool {
	return slices.Contains(PageSizes, size)
}

// Pagination is the zero-based page index and page size of a table.
type Pagination struct {
	Index int `json:"pageIndex"`
	Size  int `json:"pageSize"`
}

// NewPagination returns the first page at the given size. An invalid size
// falls back to DefaultPageSize.
func NewPagination(size int) Pagination {
	if !ValidPageSize(size) {
		size = DefaultPageSize
	}
	return Pagination{Index: 0, Size: size}
}

// PageCount returns ceil(rows/size). Zero rows give zero pages.
func PageCount(rows, size int) int {
	if size <= 0 || rows <= 0 {
		return 0
	}
	return (rows + size - 1) / size
}

// Clamp returns p with its index moved into [0, pageCount-1] for the given
// row count. Out-of-range indexes are clamped, never rejected.
func (p Pagination) Clamp(rows int) Pagination {
	last := PageCount(rows, p.Size) - 1
	if p.Index > last {
		p.Index = last
	}
	if p.Index < 0 {
		p.Index = 0
	}
	return p
}

// Goto returns p positioned at index, clamped for rows.
func (p Pagination) Goto(index, rows int) Pagination {
	p.Index = index
	return p.Clamp(rows)
}

// First returns p positioned at the first page.
func (p Pagination) First() Pagination {
	p.Index = 0
	return p
}

// Last returns p positioned at the last page for rows.
func (p Pagination) Last(rows int) Pagination {
	return p.Goto(PageCount(rows, p.Size)-1, rows)
}

// Next returns p advanced by one page, clamped for rows.
func (p Pagination) Next(rows int) Pagination {
	return p.Goto(p.Index+1, rows)
}

// Prev returns p moved back by one page, clamped for rows.
func (p Pagination) Prev(rows int) Pagination {
	return p.Goto(p.Index-1, rows)
}

// Resize returns p with a new page size, keeping the first visible row on
// screen, clamped for rows. An invalid size leaves p unchanged.
func (p Pagination) Resize(size, rows int) Pagination {
	if !ValidPageSize(size) {
		return p.Clamp(rows)
	}
	top := p.Index * p.Size
	p.Size = size
	p.Index = top / size
	return p.Clamp(rows)
}

// CanPrev reports whether a previous page exists.
func (p Pagination) CanPrev() bool {
	return p.Index > 0
}

// CanNext reports whether a next page exists for rows.
func (p Pagination) CanNext(rows int) bool {
	return p.Index < PageCount(rows, p.Size)-1
}

// Bounds returns the half-open slice range of the current page for rows.
func (p Pagination) Bounds(rows int) (start, end int) {
	start = p.Index * p.Size
	if start > rows {
		start = rows
	}
	end = start + p.Size
	if end > rows {
		end = rows
	}
	return start, end
}
