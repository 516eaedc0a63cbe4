package table

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/query"
)

// Table is the interactive state of one table: the row snapshot, the filter
// token, the sort specification and the pagination. Every event recomputes
// what it needs synchronously; Page renders the current state.
//
// A Table is not safe for concurrent use.
type Table struct {
	engine   *Engine
	rows     []*model.Game
	filter   string
	page     Pagination
	sync     *query.Synchronizer
	hydrator *query.Hydrator
	params   url.Values
	observer func(query.State, url.Values)
}

// NewTable returns a table over rows using the view's default sort and the
// given page size. Persisted state is not applied until Hydrate is called.
func NewTable(view View, rows []*model.Game, pageSize int) (*Table, error) {
	if !ValidPageSize(pageSize) {
		pageSize = DefaultPageSize
	}

	engine, err := NewEngine(view, view.DefaultSort, pageSize)
	if err != nil {
		return nil, err
	}

	defaults := query.State{Sort: view.DefaultSort}
	sync := query.NewSynchronizer(defaults, view.IsSortable)

	return &Table{
		engine:   engine,
		rows:     rows,
		page:     NewPagination(pageSize),
		sync:     sync,
		hydrator: query.NewHydrator(sync),
	}, nil
}

// Observe registers fn to be called with the new state and its persisted
// form whenever the filter token or sort specification changes.
func (t *Table) Observe(fn func(query.State, url.Values)) {
	t.observer = fn
}

// Hydrate applies persisted state the first time it is called and reports
// whether it did. Later calls are ignored, so interaction that happened
// after hydration is never overwritten.
func (t *Table) Hydrate(values url.Values) bool {
	state, ok := t.hydrator.Hydrate(values)
	if !ok {
		return false
	}

	engine, err := t.engine.WithSort(state.Sort)
	if err != nil {
		// Decode only yields sortable fields; keep the current sort otherwise.
		engine = t.engine
	}
	t.engine = engine
	t.filter = state.Filter
	t.page = t.page.First()
	t.params = t.sync.Encode(t.State(), values)
	return true
}

// Hydrated reports whether persisted state has been applied.
func (t *Table) Hydrated() bool {
	return t.hydrator.Hydrated()
}

// State returns the persistable part of the table state.
func (t *Table) State() query.State {
	return query.State{Sort: t.engine.Sort(), Filter: t.filter}
}

// Params returns the persisted form of the current state.
func (t *Table) Params() url.Values {
	return t.sync.Encode(t.State(), t.params)
}

// SetRows replaces the row snapshot and clamps the page index.
func (t *Table) SetRows(rows []*model.Game) {
	t.rows = rows
	t.page = t.page.Clamp(t.total())
}

// SetFilter changes the filter token and returns to the first page.
func (t *Table) SetFilter(token string) {
	t.filter = token
	t.page = t.page.First()
	t.changed()
}

// SetSort changes the sort specification and returns to the first page.
// Sorting by an unknown or unsortable column is an error and leaves the
// table unchanged.
func (t *Table) SetSort(spec query.SortSpec) error {
	engine, err := t.engine.WithSort(spec)
	if err != nil {
		return err
	}
	t.engine = engine
	t.page = t.page.First()
	t.changed()
	return nil
}

// ToggleSort handles activation of a column header: the active column flips
// direction, any other column becomes the ascending sort. Sort is never
// removed.
func (t *Table) ToggleSort(field string) error {
	spec := query.SortSpec{Field: field}
	if cur := t.engine.Sort(); cur.Field == field {
		spec.Desc = !cur.Desc
	}
	return t.SetSort(spec)
}

// SetPageSize switches to size rows per page, keeping the first visible row
// on screen. Sizes outside PageSizes are ignored.
func (t *Table) SetPageSize(size int) {
	engine, err := t.engine.WithPageSize(size)
	if err != nil {
		return
	}
	t.engine = engine
	t.page = t.page.Resize(size, t.total())
}

// GotoPage moves to a zero-based page index, clamped into range.
func (t *Table) GotoPage(index int) {
	t.page = t.page.Goto(index, t.total())
}

// GotoPageInput moves to a one-based page number typed by a user. Empty or
// unparseable input selects the first page.
func (t *Table) GotoPageInput(input string) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		t.GotoPage(0)
		return
	}
	t.GotoPage(n - 1)
}

// FirstPage moves to the first page.
func (t *Table) FirstPage() { t.page = t.page.First() }

// LastPage moves to the last page.
func (t *Table) LastPage() { t.page = t.page.Last(t.total()) }

// NextPage moves forward one page if possible.
func (t *Table) NextPage() { t.page = t.page.Next(t.total()) }

// PrevPage moves back one page if possible.
func (t *Table) PrevPage() { t.page = t.page.Prev(t.total()) }

// Page renders the current page. showHidden includes hideable columns.
func (t *Table) Page(showHidden bool) Page {
	return t.engine.Render(t.rows, t.filter, t.page.Index, showHidden)
}

// String describes the table position, e.g. "Page 2 of 3".
func (t *Table) String() string {
	total := t.total()
	return fmt.Sprintf("Page %d of %d", t.page.Clamp(total).Index+1, PageCount(total, t.page.Size))
}

func (t *Table) total() int {
	return len(t.engine.Filtered(t.rows, t.filter))
}

func (t *Table) changed() {
	params := t.Params()
	t.params = params
	if t.observer != nil {
		t.observer(t.State(), params)
	}
}
