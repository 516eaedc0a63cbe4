package table

import (
	"fmt"
	"time"

	"github.com/cdtdelta/backlog/internal/model"
)

// numberedGames returns n played games titled "Game 01".."Game n" finished
// on consecutive days, oldest first.
func numberedGames(n int) []*model.Game {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	games := make([]*model.Game, n)
	for i := range games {
		d := start.AddDate(0, 0, i)
		games[i] = &model.Game{
			ID:           fmt.Sprintf("id-%02d", i+1),
			Title:        fmt.Sprintf("Game %02d", i+1),
			Finished:     "Yes",
			FinishedDate: &d,
		}
	}
	return games
}

func titlesOf(games []*model.Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.Title
	}
	return out
}

func mustView(kind ViewKind) View {
	v, err := Columns(kind)
	if err != nil {
		panic(err)
	}
	return v
}
