// Package stats derives summary metrics from a full game collection,
// independent of any table state.
package stats

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/cdtdelta/backlog/internal/model"
)

// Entry labels, in summary order.
const (
	LabelAverageRating = "Average rating"
	LabelAverageLength = "Average game length"
	LabelTotalTime     = "Total time spent"
	LabelStreamed      = "Streamed games"
	LabelFinishingRate = "Finishing rate"
	LabelPlayed        = "Played games"
	LabelBacklog       = "Games in backlog"
)

// MinRating and MaxRating bound the rating distribution buckets.
const (
	MinRating = 1
	MaxRating = 10
)

type unit int

const (
	unitDecimal unit = iota
	unitHoursDecimal
	unitHours
	unitCount
	unitPercent
)

// Entry is one labelled summary value. Text is the display form; it is
// "n/a" when the value is undefined.
type Entry struct {
	Label string `json:"label" yaml:"label"`
	Value Metric `json:"value" yaml:"value"`
	Text  string `json:"text" yaml:"text"`
}

// RatingBucket counts rated games with one rating value.
type RatingBucket struct {
	Rating int `json:"rating" yaml:"rating"`
	Count  int `json:"count" yaml:"count"`
}

// YearRating is the mean rating of the rated games released in one year.
type YearRating struct {
	Year  int    `json:"year" yaml:"year"`
	Mean  Metric `json:"mean" yaml:"mean"`
	Count int    `json:"count" yaml:"count"`
}

// Summary is the result of Summarize.
type Summary struct {
	Entries            []Entry        `json:"entries" yaml:"entries"`
	RatingDistribution []RatingBucket `json:"ratingDistribution" yaml:"ratingDistribution"`
	RatingPerYear      []YearRating   `json:"ratingPerYear" yaml:"ratingPerYear"`
}

// Lookup returns the entry with the given label.
func (s Summary) Lookup(label string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// Empty reports whether the summary has no entries.
func (s Summary) Empty() bool {
	return len(s.Entries) == 0
}

// Summarize computes the summary entries and both histograms over games.
// An empty collection yields an empty summary. Rows lacking a rating or time
// are left out of the corresponding averages but still counted elsewhere.
func Summarize(games []*model.Game) Summary {
	if len(games) == 0 {
		return Summary{
			Entries:            []Entry{},
			RatingDistribution: []RatingBucket{},
			RatingPerYear:      []YearRating{},
		}
	}

	var (
		ratingSum, ratingN int
		timeSum            float64
		timeN              int
		streamed           int
		finished           int
		played             int
		backlog            int
	)

	for _, g := range games {
		if g.Rating != nil {
			ratingSum += *g.Rating
			ratingN++
		}
		if g.TimeSpent != nil {
			timeSum += *g.TimeSpent
			timeN++
		}
		if g.Streamed {
			streamed++
		}
		if g.Finished != "" && g.Finished != model.StatusDropped {
			finished++
		}
		if g.FinishedDate != nil {
			played++
		} else {
			backlog++
		}
	}

	rate := ratio(float64(finished), float64(played))
	if rate.Defined() {
		rate = Metric(math.Floor(float64(rate) * 100))
	}

	return Summary{
		Entries: []Entry{
			newEntry(LabelAverageRating, ratio(float64(ratingSum), float64(ratingN)), unitDecimal),
			newEntry(LabelAverageLength, ratio(timeSum, float64(timeN)), unitHoursDecimal),
			newEntry(LabelTotalTime, Metric(timeSum), unitHours),
			newEntry(LabelStreamed, Metric(streamed), unitCount),
			newEntry(LabelFinishingRate, rate, unitPercent),
			newEntry(LabelPlayed, Metric(played), unitCount),
			newEntry(LabelBacklog, Metric(backlog), unitCount),
		},
		RatingDistribution: RatingDistribution(games),
		RatingPerYear:      RatingPerYear(games),
	}
}

// RatingDistribution counts games per rating from MinRating to MaxRating.
// Unrated games and ratings outside the range are skipped.
func RatingDistribution(games []*model.Game) []RatingBucket {
	if len(games) == 0 {
		return []RatingBucket{}
	}
	buckets := make([]RatingBucket, MaxRating-MinRating+1)
	for i := range buckets {
		buckets[i].Rating = MinRating + i
	}
	for _, g := range games {
		if g.Rating == nil || *g.Rating < MinRating || *g.Rating > MaxRating {
			continue
		}
		buckets[*g.Rating-MinRating].Count++
	}
	return buckets
}

// RatingPerYear returns the mean rating per release year in ascending year
// order. Games lacking a rating or a release year are skipped; a zero
// rating counts as unrated.
func RatingPerYear(games []*model.Game) []YearRating {
	sums := make(map[int]int)
	counts := make(map[int]int)
	for _, g := range games {
		if g.Rating == nil || *g.Rating == 0 || g.ReleaseYear == nil {
			continue
		}
		sums[*g.ReleaseYear] += *g.Rating
		counts[*g.ReleaseYear]++
	}

	years := make([]int, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	slices.Sort(years)

	out := make([]YearRating, len(years))
	for i, y := range years {
		out[i] = YearRating{
			Year:  y,
			Mean:  ratio(float64(sums[y]), float64(counts[y])),
			Count: counts[y],
		}
	}
	return out
}

func newEntry(label string, v Metric, u unit) Entry {
	return Entry{Label: label, Value: v, Text: format(v, u)}
}

func format(v Metric, u unit) string {
	f, ok := v.Float()
	if !ok {
		return "n/a"
	}
	switch u {
	case unitDecimal:
		return strconv.FormatFloat(f, 'f', 2, 64)
	case unitHoursDecimal:
		return strconv.FormatFloat(f, 'f', 2, 64) + " hours"
	case unitHours:
		return strconv.FormatFloat(f, 'f', -1, 64) + " hours"
	case unitPercent:
		return fmt.Sprintf("%d%%", int(f))
	default:
		return strconv.Itoa(int(f))
	}
}
