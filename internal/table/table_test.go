package table

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/backlog/internal/query"
)

func newPlayedTable(t *testing.T, n int) *Table {
	t.Helper()
	tbl, err := NewTable(mustView(ViewPlayed), numberedGames(n), 10)
	require.NoError(t, err)
	return tbl
}

func TestTableStartsWithDefaults(t *testing.T) {
	tbl := newPlayedTable(t, 25)

	assert.False(t, tbl.Hydrated())
	assert.Equal(t, query.SortSpec{Field: "finishedDate", Desc: true}, tbl.State().Sort)
	assert.Equal(t, "Page 1 of 3", tbl.String())

	page := tbl.Page(false)
	assert.Equal(t, "Game 25", page.Rows[0].Title)
}

func TestTableHydrateOnce(t *testing.T) {
	tbl := newPlayedTable(t, 25)

	ok := tbl.Hydrate(url.Values{
		query.ParamSortBy:   {"title"},
		query.ParamSortDesc: {"false"},
		query.ParamTitle:    {"game 2"},
	})
	require.True(t, ok)
	assert.True(t, tbl.Hydrated())
	assert.Equal(t, query.State{Sort: query.SortSpec{Field: "title"}, Filter: "game 2"}, tbl.State())

	// User interaction after hydration wins over a late second hydration.
	tbl.SetFilter("game 1")
	assert.False(t, tbl.Hydrate(url.Values{query.ParamTitle: {"other"}}))
	assert.Equal(t, "game 1", tbl.State().Filter)
}

func TestTableHydrateIgnoresUnsortableField(t *testing.T) {
	tbl := newPlayedTable(t, 5)
	tbl.Hydrate(url.Values{query.ParamSortBy: {"vods"}, query.ParamSortDesc: {"false"}})

	assert.Equal(t, query.SortSpec{Field: "finishedDate", Desc: false}, tbl.State().Sort)
}

func TestTableFilterAndSortResetPage(t *testing.T) {
	tbl := newPlayedTable(t, 25)

	tbl.LastPage()
	assert.Equal(t, 2, tbl.Page(false).PageIndex)

	tbl.SetFilter("game")
	assert.Equal(t, 0, tbl.Page(false).PageIndex)

	tbl.NextPage()
	require.NoError(t, tbl.SetSort(query.SortSpec{Field: "title"}))
	assert.Equal(t, 0, tbl.Page(false).PageIndex)
}

func TestTableToggleSort(t *testing.T) {
	tbl := newPlayedTable(t, 3)

	require.NoError(t, tbl.ToggleSort("finishedDate"))
	assert.Equal(t, query.SortSpec{Field: "finishedDate", Desc: false}, tbl.State().Sort)

	require.NoError(t, tbl.ToggleSort("finishedDate"))
	assert.Equal(t, query.SortSpec{Field: "finishedDate", Desc: true}, tbl.State().Sort)

	require.NoError(t, tbl.ToggleSort("rating"))
	assert.Equal(t, query.SortSpec{Field: "rating", Desc: false}, tbl.State().Sort)

	err := tbl.ToggleSort("coverImageId")
	assert.ErrorIs(t, err, ErrNotSortable)
	assert.Equal(t, "rating", tbl.State().Sort.Field)
}

func TestTableObserverSeesChanges(t *testing.T) {
	tbl := newPlayedTable(t, 3)

	var seen []url.Values
	tbl.Observe(func(_ query.State, params url.Values) {
		seen = append(seen, params)
	})

	tbl.SetFilter("y:2020")
	require.NoError(t, tbl.SetSort(query.SortSpec{Field: "rating", Desc: true}))
	tbl.NextPage() // paging is not persisted

	require.Len(t, seen, 2)
	assert.Equal(t, "y:2020", seen[0].Get(query.ParamTitle))
	assert.Equal(t, "rating", seen[1].Get(query.ParamSortBy))
	assert.Equal(t, "true", seen[1].Get(query.ParamSortDesc))
	assert.Equal(t, "y:2020", seen[1].Get(query.ParamTitle))
}

func TestTableParamsRoundTrip(t *testing.T) {
	tbl := newPlayedTable(t, 3)
	tbl.SetFilter("y:2020")
	require.NoError(t, tbl.SetSort(query.SortSpec{Field: "rating", Desc: true}))

	other := newPlayedTable(t, 3)
	require.True(t, other.Hydrate(tbl.Params()))
	assert.Equal(t, tbl.State(), other.State())
}

func TestTablePageSizeAndGoto(t *testing.T) {
	tbl := newPlayedTable(t, 95)

	tbl.GotoPage(4)
	assert.Equal(t, 4, tbl.Page(false).PageIndex)

	tbl.SetPageSize(30)
	page := tbl.Page(false)
	assert.Equal(t, 30, page.PageSize)
	assert.Equal(t, 1, page.PageIndex)
	assert.Equal(t, 4, page.PageCount)

	tbl.SetPageSize(25)
	assert.Equal(t, 30, tbl.Page(false).PageSize, "invalid sizes are ignored")

	tbl.GotoPageInput("4")
	assert.Equal(t, 3, tbl.Page(false).PageIndex)

	tbl.GotoPageInput("")
	assert.Equal(t, 0, tbl.Page(false).PageIndex)

	tbl.GotoPageInput("99")
	assert.Equal(t, 3, tbl.Page(false).PageIndex)
}

func TestTableSetRowsClamps(t *testing.T) {
	tbl := newPlayedTable(t, 25)
	tbl.LastPage()

	tbl.SetRows(numberedGames(8))
	page := tbl.Page(false)
	assert.Equal(t, 0, page.PageIndex)
	assert.Len(t, page.Rows, 8)
}
