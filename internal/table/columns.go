package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/query"
)

// Column configuration errors. These are setup-time failures; a table is
// never rendered with an invalid configuration.
var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNotSortable     = errors.New("column is not sortable")
	ErrDuplicateColumn = errors.New("duplicate column id")
	ErrUnknownView     = errors.New("unknown view")
	ErrInvalidColumn   = errors.New("invalid column")
)

// ViewKind selects one of the fixed column registries.
type ViewKind string

const (
	ViewPlayed  ViewKind = "played"
	ViewBacklog ViewKind = "backlog"
)

// IDColumn is the identifier column that only admins see.
const IDColumn = "_id"

// Accessor projects a game onto a column value. It must be pure and return
// nil for an absent value.
type Accessor func(g *model.Game) any

// Formatter renders a column value for display. It receives the whole game
// so cells can combine fields (a date marked as approximate, for example).
type Formatter func(g *model.Game, v any) string

// Column describes one table column. Columns are plain data; behavior that
// varies per column lives in the Accessor, Formatter and Compare fields.
type Column struct {
	ID       string
	Header   string
	Accessor Accessor
	Format   Formatter
	Compare  query.Comparator

	Sortable   bool
	Filterable bool // searched by substring filters
	Hideable   bool // shown only when the caller allows hidden columns
}

// Value returns the column value for g.
func (c Column) Value(g *model.Game) any {
	return c.Accessor(g)
}

// Text returns the display text of the column for g.
func (c Column) Text(g *model.Game) string {
	v := c.Accessor(g)
	if c.Format != nil {
		return c.Format(g, v)
	}
	return FormatValue(g, v)
}

// View is an ordered column registry plus the defaults a table built from
// it starts with.
type View struct {
	Kind        ViewKind
	Columns     []Column
	DefaultSort query.SortSpec
}

// Validate checks that column ids are unique, that every column can be
// evaluated, and that the default sort references a sortable column.
func (v View) Validate() error {
	seen := make(map[string]bool, len(v.Columns))
	for _, c := range v.Columns {
		if c.ID == "" || c.Accessor == nil {
			return fmt.Errorf("%w: %q", ErrInvalidColumn, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.ID)
		}
		if c.Sortable && c.Compare == nil {
			return fmt.Errorf("%w: %s has no comparator", ErrInvalidColumn, c.ID)
		}
		seen[c.ID] = true
	}
	_, err := v.SortColumn(v.DefaultSort.Field)
	return err
}

// Lookup returns the column with the given id.
func (v View) Lookup(id string) (Column, bool) {
	for _, c := range v.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// SortColumn returns the column for a sort field, or a configuration error
// when it is unknown or not sortable.
func (v View) SortColumn(id string) (Column, error) {
	c, ok := v.Lookup(id)
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownColumn, id)
	}
	if !c.Sortable {
		return Column{}, fmt.Errorf("%w: %s", ErrNotSortable, id)
	}
	return c, nil
}

// IsSortable reports whether id names a sortable column.
func (v View) IsSortable(id string) bool {
	_, err := v.SortColumn(id)
	return err == nil
}

// Visible returns the columns to render. Hideable columns are included only
// when showHidden is set (the admin flag).
func (v View) Visible(showHidden bool) []Column {
	out := make([]Column, 0, len(v.Columns))
	for _, c := range v.Columns {
		if c.Hideable && !showHidden {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Searchable returns text projections of the globally filterable columns.
func (v View) Searchable() []query.Text {
	var out []query.Text
	for _, c := range v.Columns {
		if !c.Filterable {
			continue
		}
		out = append(out, func(g *model.Game) string {
			s, _ := c.Accessor(g).(string)
			return s
		})
	}
	return out
}

// Columns returns the registry for a view kind.
func Columns(kind ViewKind) (View, error) {
	switch kind {
	case ViewPlayed:
		return playedView(), nil
	case ViewBacklog:
		return backlogView(), nil
	default:
		return View{}, fmt.Errorf("%w: %q", ErrUnknownView, kind)
	}
}

// ParseViewKind maps a user-supplied view name to a ViewKind. The empty
// string selects the played view.
func ParseViewKind(s string) (ViewKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ViewPlayed):
		return ViewPlayed, nil
	case string(ViewBacklog):
		return ViewBacklog, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

func field(name string) Accessor {
	return func(g *model.Game) any { return g.Value(name) }
}

func playedView() View {
	return View{
		Kind: ViewPlayed,
		Columns: []Column{
			{ID: "title", Header: "Game", Accessor: field("title"), Compare: query.NaturalCompare, Sortable: true, Filterable: true},
			{ID: "finished", Header: "Finished", Accessor: field("finished"), Compare: query.NaturalCompare, Sortable: true},
			{ID: "finishedDate", Header: "Date", Accessor: field("finishedDate"), Format: formatFinishedDate, Compare: query.DateCompare, Sortable: true},
			{ID: "approximateDate", Header: "Approx.", Accessor: field("approximateDate"), Format: formatFlag, Compare: query.NaturalCompare, Sortable: true},
			{ID: "rating", Header: "Rating", Accessor: field("rating"), Format: formatRating, Compare: query.ScoreCompare, Sortable: true},
			{ID: "comment", Header: "Comment", Accessor: field("comment"), Compare: query.NaturalCompare, Sortable: true},
			{ID: "streamed", Header: "Streamed", Accessor: field("streamed"), Format: formatFlag},
			{ID: "timeSpent", Header: "Time", Accessor: field("timeSpent"), Format: formatHours, Compare: query.NaturalCompare, Sortable: true},
			{ID: "releaseYear", Header: "Released", Accessor: field("releaseYear"), Compare: query.NaturalCompare, Sortable: true},
			{ID: "vods", Header: "VODs", Accessor: field("vods")},
			{ID: "coverImageId", Header: "Cover", Accessor: field("coverImageId")},
			{ID: IDColumn, Header: "ID", Accessor: field(IDColumn), Compare: query.NaturalCompare, Sortable: true, Hideable: true},
		},
		DefaultSort: query.SortSpec{Field: "finishedDate", Desc: true},
	}
}

func backlogView() View {
	return View{
		Kind: ViewBacklog,
		Columns: []Column{
			{ID: "title", Header: "Game", Accessor: field("title"), Compare: query.NaturalCompare, Sortable: true, Filterable: true},
			{ID: "notPollable", Header: "Blocked from polls by", Accessor: field("notPollable"), Compare: query.NaturalCompare, Sortable: true, Filterable: true},
			{ID: IDColumn, Header: "Recap", Accessor: field(IDColumn), Format: formatRecap, Hideable: true},
		},
		DefaultSort: query.SortSpec{Field: "title", Desc: false},
	}
}

// FormatValue renders a column value without column-specific rules.
func FormatValue(_ *model.Game, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return formatFlag(nil, x)
	case time.Time:
		return x.Format("2006-01-02")
	case []string:
		return strings.Join(x, " ")
	default:
		return fmt.Sprint(x)
	}
}

func formatFinishedDate(g *model.Game, v any) string {
	if g.InProgress() {
		return model.StatusHappening
	}
	t, ok := v.(time.Time)
	if !ok {
		return ""
	}
	if g.ApproximateDate {
		return "~" + t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

func formatFlag(_ *model.Game, v any) string {
	if b, ok := v.(bool); ok && b {
		return "✓"
	}
	return ""
}

func formatRating(_ *model.Game, v any) string {
	if r, ok := v.(int); ok {
		return strconv.Itoa(r) + "/10"
	}
	return ""
}

func formatHours(_ *model.Game, v any) string {
	if h, ok := v.(float64); ok {
		return strconv.FormatFloat(h, 'f', -1, 64) + " h"
	}
	return ""
}

func formatRecap(_ *model.Game, v any) string {
	if id, ok := v.(string); ok && id != "" {
		return "/recap?id=" + id
	}
	return ""
}
