package table

import (
	"errors"
	"fmt"

	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/query"
)

// ErrInvalidPageSize is returned when an engine is configured with a page
// size outside PageSizes.
var ErrInvalidPageSize = errors.New("invalid page size")

// Engine turns a row snapshot into one rendered page. An Engine is immutable
// and its configuration is validated when it is built, so Render cannot fail.
type Engine struct {
	view       View
	sort       query.SortSpec
	compare    query.Comparator
	searchable []query.Text
	pageSize   int
}

// NewEngine validates the view, sort specification and page size and
// returns an engine for them.
func NewEngine(view View, sort query.SortSpec, pageSize int) (*Engine, error) {
	if err := view.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s view: %w", view.Kind, err)
	}

	col, err := view.SortColumn(sort.Field)
	if err != nil {
		return nil, fmt.Errorf("configuring sort: %w", err)
	}

	if !ValidPageSize(pageSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	return &Engine{
		view:       view,
		sort:       sort,
		compare:    col.Compare,
		searchable: view.Searchable(),
		pageSize:   pageSize,
	}, nil
}

// WithSort returns a copy of e sorting by spec.
func (e *Engine) WithSort(spec query.SortSpec) (*Engine, error) {
	col, err := e.view.SortColumn(spec.Field)
	if err != nil {
		return nil, fmt.Errorf("configuring sort: %w", err)
	}
	next := *e
	next.sort = spec
	next.compare = col.Compare
	return &next, nil
}

// WithPageSize returns a copy of e using size rows per page.
func (e *Engine) WithPageSize(size int) (*Engine, error) {
	if !ValidPageSize(size) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}
	next := *e
	next.pageSize = size
	return &next, nil
}

// View returns the column registry the engine renders.
func (e *Engine) View() View { return e.view }

// Sort returns the active sort specification.
func (e *Engine) Sort() query.SortSpec { return e.sort }

// PageSize returns the number of rows per page.
func (e *Engine) PageSize() int { return e.pageSize }

// Page is one rendered table page.
type Page struct {
	Columns   []Column
	Rows      []*model.Game
	Sort      query.SortSpec
	Filter    string
	PageIndex int
	PageSize  int
	PageCount int
	Total     int // rows left after filtering
	CanPrev   bool
	CanNext   bool
}

// Cells returns the formatted text of every visible cell, row by row.
func (p Page) Cells() [][]string {
	out := make([][]string, len(p.Rows))
	for i, g := range p.Rows {
		row := make([]string, len(p.Columns))
		for j, c := range p.Columns {
			row[j] = c.Text(g)
		}
		out[i] = row
	}
	return out
}

// Headers returns the visible column headers.
func (p Page) Headers() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Header
	}
	return out
}

// Filtered returns the rows matched by the filter token, in input order.
func (e *Engine) Filtered(rows []*model.Game, filter string) []*model.Game {
	return query.Filter(rows, query.ParseFilter(filter), e.searchable...)
}

// Ordered returns the filtered rows in sort order.
func (e *Engine) Ordered(rows []*model.Game, filter string) []*model.Game {
	return query.Sort(e.Filtered(rows, filter), e.sort, e.compare)
}

// Render filters, sorts and paginates rows. pageIndex is clamped into the
// valid range. showHidden includes hideable columns (the admin flag). rows
// is never modified.
func (e *Engine) Render(rows []*model.Game, filter string, pageIndex int, showHidden bool) Page {
	ordered := e.Ordered(rows, filter)
	total := len(ordered)

	p := Pagination{Index: pageIndex, Size: e.pageSize}.Clamp(total)
	start, end := p.Bounds(total)

	return Page{
		Columns:   e.view.Visible(showHidden),
		Rows:      ordered[start:end:end],
		Sort:      e.sort,
		Filter:    filter,
		PageIndex: p.Index,
		PageSize:  p.Size,
		PageCount: PageCount(total, p.Size),
		Total:     total,
		CanPrev:   p.CanPrev(),
		CanNext:   p.CanNext(total),
	}
}

// Request carries everything Render needs besides the rows and the view.
type Request struct {
	Filter     string
	Sort       query.SortSpec
	PageIndex  int
	PageSize   int
	ShowHidden bool
}

// Render builds an engine for view and req and renders rows with it. The
// only error is a configuration error from NewEngine.
func Render(rows []*model.Game, view View, req Request) (Page, error) {
	e, err := NewEngine(view, req.Sort, req.PageSize)
	if err != nil {
		return Page{}, err
	}
	return e.Render(rows, req.Filter, req.PageIndex, req.ShowHidden), nil
}
