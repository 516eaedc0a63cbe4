package model

import "time"

// Status labels stored in the "finished" field.
const (
	// StatusHappening marks a game that is currently being played.
	StatusHappening = "Happening"
	// StatusDropped marks a game that was started and abandoned.
	StatusDropped = "Nope"
)

// NotPollableExcluded is the notPollable value that removes a game from the
// backlog entirely.
const NotPollableExcluded = "Ehh..."

// Game represents a single catalog entry as stored in the games collection.
// Optional fields are pointers so that an absent value is distinguishable
// from a zero value.
type Game struct {
	ID              string     `json:"_id"`
	Title           string     `json:"title"`
	Comment         *string    `json:"comment"`
	CoverImageID    string     `json:"coverImageId"`
	Developers      []string   `json:"developers"`
	Finished        string     `json:"finished"`
	FinishedDate    *time.Time `json:"finishedDate"`
	ApproximateDate bool       `json:"approximateDate"`
	IGDBID          int64      `json:"igdbId"`
	IGDBURL         string     `json:"igdbUrl"`
	Keywords        []string   `json:"keywords"`
	NotPollable     string     `json:"notPollable"`
	Platform        string     `json:"platform"`
	Rating          *int       `json:"rating"`
	ReleaseYear     *int       `json:"releaseYear"`
	TimeSpent       *float64   `json:"timeSpent"`
	TSS             bool       `json:"tss"`
	Streamed        bool       `json:"streamed"`
	VODs            []string   `json:"vods"`
}

// InProgress reports whether the game carries the in-progress sentinel.
func (g *Game) InProgress() bool {
	return g.Finished == StatusHappening
}

// Excluded reports whether the game has been excluded from the backlog.
func (g *Game) Excluded() bool {
	return g.NotPollable == NotPollableExcluded
}

// IsPlayed reports whether the game belongs to the played view: it has a
// completion date or is currently in progress.
func (g *Game) IsPlayed() bool {
	return g.FinishedDate != nil || g.InProgress()
}

// IsBacklog reports whether the game belongs to the backlog view.
// A game is never both played and backlog.
func (g *Game) IsBacklog() bool {
	return !g.IsPlayed() && !g.Excluded()
}

// Value returns the value of the named field, or nil when the field is
// absent on this game or unknown. Pointer fields are dereferenced.
func (g *Game) Value(field string) any {
	switch field {
	case "_id":
		return g.ID
	case "title":
		return g.Title
	case "comment":
		if g.Comment == nil {
			return nil
		}
		return *g.Comment
	case "coverImageId":
		return g.CoverImageID
	case "developers":
		return g.Developers
	case "finished":
		if g.Finished == "" {
			return nil
		}
		return g.Finished
	case "finishedDate":
		if g.FinishedDate == nil {
			return nil
		}
		return *g.FinishedDate
	case "approximateDate":
		return g.ApproximateDate
	case "igdbId":
		return g.IGDBID
	case "igdbUrl":
		return g.IGDBURL
	case "keywords":
		return g.Keywords
	case "notPollable":
		if g.NotPollable == "" {
			return nil
		}
		return g.NotPollable
	case "platform":
		if g.Platform == "" {
			return nil
		}
		return g.Platform
	case "rating":
		if g.Rating == nil {
			return nil
		}
		return *g.Rating
	case "releaseYear":
		if g.ReleaseYear == nil {
			return nil
		}
		return *g.ReleaseYear
	case "timeSpent":
		if g.TimeSpent == nil {
			return nil
		}
		return *g.TimeSpent
	case "tss":
		return g.TSS
	case "streamed":
		return g.Streamed
	case "vods":
		return g.VODs
	default:
		return nil
	}
}

// Partition splits games into the played and backlog views, preserving input
// order. Excluded backlog entries appear in neither.
func Partition(games []*Game) (played, backlog []*Game) {
	for _, g := range games {
		switch {
		case g.IsPlayed():
			played = append(played, g)
		case g.IsBacklog():
			backlog = append(backlog, g)
		}
	}
	return played, backlog
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// TimePtr returns a pointer to v.
func TimePtr(v time.Time) *time.Time { return &v }
