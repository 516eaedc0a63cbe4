// Package csvparser imports games from spreadsheet exports and writes
// games or rendered table pages back to CSV.
package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/table"
)

// ReadResult contains the outcome of a CSV import operation.
type ReadResult struct {
	Games    []*model.Game
	Count    int
	Excluded int
}

// Known spreadsheet header names and their aliases.
// Maps lower-cased header names to game document fields.
var fieldAliases = map[string]string{
	"_id":              "_id",
	"id":               "_id",
	"title":            "title",
	"game":             "title",
	"name":             "title",
	"comment":          "comment",
	"comments":         "comment",
	"notes":            "comment",
	"coverimageid":     "coverImageId",
	"cover":            "coverImageId",
	"developers":       "developers",
	"developer":        "developers",
	"finished":         "finished",
	"status":           "finished",
	"finisheddate":     "finishedDate",
	"finished on":      "finishedDate",
	"date":             "finishedDate",
	"approximatedate":  "approximateDate",
	"approx.":          "approximateDate",
	"approximate":      "approximateDate",
	"igdbid":           "igdbId",
	"igdburl":          "igdbUrl",
	"keywords":         "keywords",
	"notpollable":      "notPollable",
	"platform":         "platform",
	"rating":           "rating",
	"score":            "rating",
	"releaseyear":      "releaseYear",
	"released":         "releaseYear",
	"year":             "releaseYear",
	"timespent":        "timeSpent",
	"time":             "timeSpent",
	"hours":            "timeSpent",
	"tss":              "tss",
	"streamed":         "streamed",
	"vods":             "vods",

	// Column header of the backlog view export.
	"blocked from polls by": "notPollable",
}

// exportHeader is the header WriteGames emits; ReadGames accepts it back.
var exportHeader = []string{
	"_id", "title", "finished", "finishedDate", "approximateDate", "rating",
	"comment", "streamed", "timeSpent", "releaseYear", "vods", "notPollable",
	"platform", "developers", "keywords", "coverImageId", "igdbId", "igdbUrl", "tss",
}

// dateLayouts are tried in order for finishedDate cells.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006-01",
}

// ValidateFile checks if a file has a header row that maps a title column.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := newReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	for _, cm := range buildColumnMap(header) {
		if cm.fieldName == "title" {
			return nil
		}
	}
	return fmt.Errorf("no title column in header (found: %s)", strings.Join(header, ", "))
}

// ReadGames reads games from a CSV file.
// The header row determines which fields are present and their mapping.
func ReadGames(path string, onProgress func(int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return Read(f, onProgress)
}

// Read reads games from r. Rows without a title are excluded; rows without
// an id get a fresh one.
func Read(r io.Reader, onProgress func(int)) (*ReadResult, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	colMap := buildColumnMap(header)
	if len(colMap) == 0 {
		return nil, fmt.Errorf("no recognized fields in header")
	}

	result := &ReadResult{}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows
			result.Excluded++
			continue
		}

		g := rowToGame(row, colMap)
		if g == nil {
			result.Excluded++
			continue
		}
		result.Games = append(result.Games, g)
		result.Count++

		if onProgress != nil && result.Count%1000 == 0 {
			onProgress(result.Count)
		}
	}

	return result, nil
}

// WriteGames writes full game documents to a CSV file that ReadGames can
// import again.
func WriteGames(path string, games []*model.Game) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, g := range games {
		row := []string{
			g.ID,
			g.Title,
			g.Finished,
			formatDate(g.FinishedDate),
			strconv.FormatBool(g.ApproximateDate),
			formatInt(g.Rating),
			deref(g.Comment),
			strconv.FormatBool(g.Streamed),
			formatFloat(g.TimeSpent),
			formatInt(g.ReleaseYear),
			strings.Join(g.VODs, " "),
			g.NotPollable,
			g.Platform,
			strings.Join(g.Developers, "; "),
			strings.Join(g.Keywords, "; "),
			g.CoverImageID,
			strconv.FormatInt(g.IGDBID, 10),
			g.IGDBURL,
			strconv.FormatBool(g.TSS),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WritePages writes the formatted cells of rendered table pages to a CSV
// file, using the column headers of the first page.
func WritePages(path string, pages ...table.Page) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := writePages(f, pages); err != nil {
		return err
	}
	return f.Close()
}

func writePages(w io.Writer, pages []table.Page) error {
	writer := csv.NewWriter(w)

	if len(pages) > 0 {
		if err := writer.Write(pages[0].Headers()); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, p := range pages {
		if err := writer.WriteAll(p.Cells()); err != nil {
			return fmt.Errorf("writing page %d: %w", p.PageIndex+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// columnMapping maps a column index to a game field name.
type columnMapping struct {
	index     int
	fieldName string
}

// buildColumnMap creates a mapping from column indices to field names.
func buildColumnMap(header []string) []columnMapping {
	var mappings []columnMapping
	seen := make(map[string]bool)

	for i, col := range header {
		col = strings.TrimSpace(strings.ToLower(col))
		if fieldName, ok := fieldAliases[col]; ok {
			// Avoid duplicate mappings (first one wins)
			if !seen[fieldName] {
				seen[fieldName] = true
				mappings = append(mappings, columnMapping{index: i, fieldName: fieldName})
			}
		}
	}

	return mappings
}

// rowToGame converts a CSV row to a Game using the column mapping, or nil
// when the row has no title.
func rowToGame(row []string, colMap []columnMapping) *model.Game {
	g := &model.Game{}

	for _, cm := range colMap {
		val := strings.TrimSpace(safeIndex(row, cm.index))
		if val == "" || val == "-" {
			continue
		}

		switch cm.fieldName {
		case "_id":
			g.ID = val
		case "title":
			g.Title = val
		case "comment":
			g.Comment = model.StringPtr(val)
		case "coverImageId":
			g.CoverImageID = val
		case "developers":
			g.Developers = splitList(val)
		case "finished":
			g.Finished = val
		case "finishedDate":
			g.FinishedDate, g.ApproximateDate = parseDate(val, g.ApproximateDate)
		case "approximateDate":
			g.ApproximateDate = g.ApproximateDate || parseBool(val)
		case "igdbId":
			g.IGDBID, _ = strconv.ParseInt(val, 10, 64)
		case "igdbUrl":
			g.IGDBURL = val
		case "keywords":
			g.Keywords = splitList(val)
		case "notPollable":
			g.NotPollable = val
		case "platform":
			g.Platform = val
		case "rating":
			g.Rating = parseRating(val)
		case "releaseYear":
			if n, err := strconv.Atoi(val); err == nil {
				g.ReleaseYear = model.IntPtr(n)
			}
		case "timeSpent":
			g.TimeSpent = parseHours(val)
		case "tss":
			g.TSS = parseBool(val)
		case "streamed":
			g.Streamed = parseBool(val)
		case "vods":
			g.VODs = strings.Fields(strings.ReplaceAll(val, ";", " "))
		}
	}

	if g.Title == "" {
		return nil
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return g
}

// parseDate parses a finished date. A leading "~" or a month-only date
// marks the date approximate.
func parseDate(s string, approx bool) (*time.Time, bool) {
	if strings.HasPrefix(s, "~") {
		s = strings.TrimSpace(s[1:])
		approx = true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if layout == "2006-01" {
				approx = true
			}
			t = t.UTC()
			return &t, approx
		}
	}
	return nil, approx
}

// parseRating accepts "8" and "8/10".
func parseRating(s string) *int {
	s, _, _ = strings.Cut(s, "/")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return model.IntPtr(n)
}

// parseHours accepts "12.5", "12.5 h" and "12.5 hours".
func parseHours(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "hours"), "h"))
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return nil
	}
	return model.FloatPtr(f)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "x", "✓":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// safeIndex returns the value at index i, or empty string if out of bounds.
func safeIndex(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(newNullStripper(r))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable field counts
	return reader
}

// nullStripper wraps a reader and strips null bytes from the stream.
type nullStripper struct {
	r io.Reader
}

func newNullStripper(r io.Reader) io.Reader {
	return &nullStripper{r: r}
}

func (ns *nullStripper) Read(p []byte) (int, error) {
	n, err := ns.r.Read(p)
	if n > 0 {
		// Replace null bytes in place
		cleaned := strings.ReplaceAll(string(p[:n]), "\x00", "")
		copy(p, cleaned)
		n = len(cleaned)
	}
	return n, err
}
