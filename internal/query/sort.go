package query

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cdtdelta/backlog/internal/model"
)

// SortSpec is the single active sort: a field and a direction.
type SortSpec struct {
	Field string `json:"id"`
	Desc  bool   `json:"desc"`
}

// Comparator orders two games by field and returns the ascending-order
// result (negative, zero or positive). desc is the requested direction; the
// caller negates the result for descending sorts, so a comparator that wants
// a row pinned to the end in both directions must look at desc.
type Comparator func(a, b *model.Game, field string, desc bool) int

// Sort returns a stably sorted copy of games. The input slice is not
// modified. Rows comparing equal keep their input order.
func Sort(games []*model.Game, spec SortSpec, compare Comparator) []*model.Game {
	out := slices.Clone(games)
	slices.SortStableFunc(out, func(a, b *model.Game) int {
		c := compare(a, b, spec.Field, spec.Desc)
		if spec.Desc {
			return -c
		}
		return c
	})
	return out
}

// DateCompare orders by the instant stored in field. In-progress games are
// pinned after every other game in both directions, as are games without a
// date.
func DateCompare(a, b *model.Game, field string, desc bool) int {
	if c, ok := pinLast(a.InProgress(), b.InProgress(), desc); ok {
		return c
	}

	at, aok := a.Value(field).(time.Time)
	bt, bok := b.Value(field).(time.Time)
	if c, ok := pinLast(!aok, !bok, desc); ok {
		return c
	}
	return at.Compare(bt)
}

// ScoreCompare orders by a numeric rating. Equal ratings are broken by title
// in descending order. Games without a rating sort after rated ones.
func ScoreCompare(a, b *model.Game, field string, desc bool) int {
	av, aok := numeric(a.Value(field))
	bv, bok := numeric(b.Value(field))

	if aok == bok && (!aok || av == bv) {
		return CompareText(b.Title, a.Title)
	}
	if c, ok := pinLast(!aok, !bok, desc); ok {
		return c
	}
	return cmp.Compare(av, bv)
}

// NaturalCompare orders by the natural ordering of the field value. Absent
// values sort after present ones in both directions.
func NaturalCompare(a, b *model.Game, field string, desc bool) int {
	av := a.Value(field)
	bv := b.Value(field)
	if c, ok := pinLast(av == nil, bv == nil, desc); ok {
		return c
	}

	switch x := av.(type) {
	case string:
		if y, ok := bv.(string); ok {
			return CompareText(x, y)
		}
	case bool:
		if y, ok := bv.(bool); ok {
			return compareBool(x, y)
		}
	case time.Time:
		if y, ok := bv.(time.Time); ok {
			return x.Compare(y)
		}
	case []string:
		if y, ok := bv.([]string); ok {
			if c := cmp.Compare(len(x), len(y)); c != 0 {
				return c
			}
			return CompareText(strings.Join(x, ","), strings.Join(y, ","))
		}
	}

	xn, xok := numeric(av)
	yn, yok := numeric(bv)
	if xok && yok {
		return cmp.Compare(xn, yn)
	}
	return 0
}

// A collate.Collator keeps scratch buffers and must not be shared between
// goroutines, so each comparison borrows one from the pool.
var collators = sync.Pool{
	New: func() any { return collate.New(language.English) },
}

// CompareText compares two strings with English collation rules, so that
// letter case and accents order the way a reader expects. It is safe for
// concurrent use.
func CompareText(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// pinLast orders an absent (or pinned) value after a present one in either
// direction. It reports false when neither side is pinned.
func pinLast(aPinned, bPinned, desc bool) (int, bool) {
	last := 1
	if desc {
		last = -1
	}

	switch {
	case aPinned && bPinned:
		return 0, true
	case aPinned:
		return last, true
	case bPinned:
		return -last, true
	default:
		return 0, false
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
