package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cdtdelta/backlog/internal/stats"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	footerStyle = lipgloss.NewStyle().Faint(true)
)

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderPage(w io.Writer, resp *QueryResponse) {
	p := resp.Page
	t := newTable().Headers(p.Headers()...).Rows(p.Cells()...)
	fmt.Fprintln(w, t.Render())

	dir := "asc"
	if p.Sort.Desc {
		dir = "desc"
	}
	footer := fmt.Sprintf("%s · %d games · sorted by %s %s", resp.Position, p.Total, p.Sort.Field, dir)
	if p.Filter != "" {
		footer += fmt.Sprintf(" · filter %q", p.Filter)
	}
	fmt.Fprintln(w, footerStyle.Render(footer))
	fmt.Fprintln(w, footerStyle.Render("query: "+resp.Query))
}

func renderSummary(w io.Writer, s stats.Summary) {
	if s.Empty() {
		fmt.Fprintln(w, "No games.")
		return
	}

	entries := newTable().Headers("Statistic", "Value")
	for _, e := range s.Entries {
		entries.Row(e.Label, e.Text)
	}
	fmt.Fprintln(w, entries.Render())

	dist := newTable().Headers("Rating", "Games")
	for _, b := range s.RatingDistribution {
		dist.Row(itoa(b.Rating), itoa(b.Count))
	}
	fmt.Fprintln(w, dist.Render())

	years := newTable().Headers("Year", "Average rating", "Games")
	for _, y := range s.RatingPerYear {
		years.Row(itoa(y.Year), y.Mean.String(), itoa(y.Count))
	}
	fmt.Fprintln(w, years.Render())
}

func itoa(n int) string { return strconv.Itoa(n) }
