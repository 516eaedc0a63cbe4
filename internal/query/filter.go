package query

import (
	"slices"
	"strings"

	"github.com/cdtdelta/backlog/internal/model"
)

// YearPrefix introduces a release-year qualifier in a filter token,
// e.g. "y:2019".
const YearPrefix = "y:"

// Text projects a game onto a searchable string.
type Text func(g *model.Game) string

// Predicate decides whether a game is included by a filter token.
// A nil Predicate matches every game.
type Predicate struct {
	kind predicateKind
	text string
	year int
}

type predicateKind int

const (
	predAll predicateKind = iota
	predSubstring
	predYear
)

// ParseFilter parses a raw filter token.
//
// The token is trimmed. A token starting with "y:" whose remainder begins
// with an integer becomes a release-year equality filter; a "y:" token whose
// remainder does not parse (or parses to zero) matches everything. Any other
// non-empty token is a case-insensitive substring filter. The empty token
// matches everything.
func ParseFilter(token string) *Predicate {
	trimmed := strings.TrimSpace(token)
	p := &Predicate{kind: predAll}

	if trimmed == "" {
		return p
	}

	if strings.HasPrefix(trimmed, YearPrefix) {
		year, ok := parseLeadingInt(strings.TrimSpace(trimmed[len(YearPrefix):]))
		if ok && year != 0 {
			p.kind = predYear
			p.year = year
		}
		return p
	}

	p.kind = predSubstring
	p.text = strings.ToLower(trimmed)
	return p
}

// Matches reports whether g is included by the raw filter token, searching
// the title for substring filters.
func Matches(g *model.Game, token string) bool {
	return ParseFilter(token).Match(g)
}

// Match reports whether g satisfies the predicate. Substring predicates are
// tested against each searchable projection and match if any contains the
// text; with no projections the title is searched.
func (p *Predicate) Match(g *model.Game, searchable ...Text) bool {
	if p == nil {
		return true
	}

	switch p.kind {
	case predYear:
		return g.ReleaseYear != nil && *g.ReleaseYear == p.year
	case predSubstring:
		if len(searchable) == 0 {
			return strings.Contains(strings.ToLower(g.Title), p.text)
		}
		for _, fn := range searchable {
			if strings.Contains(strings.ToLower(fn(g)), p.text) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// MatchesAll reports whether the predicate accepts every game regardless of
// its fields.
func (p *Predicate) MatchesAll() bool {
	return p == nil || p.kind == predAll
}

// Filter returns the games matched by p, preserving order. The input slice
// is not modified.
func Filter(games []*model.Game, p *Predicate, searchable ...Text) []*model.Game {
	if p.MatchesAll() {
		return slices.Clone(games)
	}
	out := make([]*model.Game, 0, len(games))
	for _, g := range games {
		if p.Match(g, searchable...) {
			out = append(out, g)
		}
	}
	return out
}

// parseLeadingInt parses an optionally signed run of leading decimal digits,
// ignoring anything after them ("2019abc" parses as 2019).
func parseLeadingInt(s string) (int, bool) {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	start := i
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		if n > 1<<31 {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
