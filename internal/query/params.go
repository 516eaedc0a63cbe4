package query

import (
	"net/url"
	"strconv"
)

// Persisted query parameter names.
const (
	ParamSortBy   = "sortBy"
	ParamSortDesc = "sortDesc"
	ParamTitle    = "title"
)

// State is the part of table state that survives navigation: the sort
// specification and the raw filter token.
type State struct {
	Sort   SortSpec `json:"sort"`
	Filter string   `json:"filter"`
}

// DefaultState is used for any parameter that is missing or malformed.
var DefaultState = State{
	Sort:   SortSpec{Field: "finishedDate", Desc: true},
	Filter: "",
}

// Synchronizer maps table state to and from persisted query parameters.
type Synchronizer struct {
	defaults State
	sortable func(field string) bool
}

// NewSynchronizer creates a Synchronizer that falls back to defaults per
// field. sortable validates decoded sort fields; pass nil to accept any
// non-empty field.
func NewSynchronizer(defaults State, sortable func(field string) bool) *Synchronizer {
	return &Synchronizer{defaults: defaults, sortable: sortable}
}

// Decode reads state from persisted parameters. Each field falls back to its
// default independently when missing or malformed; unknown keys are ignored.
func (s *Synchronizer) Decode(values url.Values) State {
	state := s.defaults

	if field := values.Get(ParamSortBy); field != "" && s.validField(field) {
		state.Sort.Field = field
	}

	switch values.Get(ParamSortDesc) {
	case "true":
		state.Sort.Desc = true
	case "false":
		state.Sort.Desc = false
	}

	if values.Has(ParamTitle) {
		state.Filter = values.Get(ParamTitle)
	}

	return state
}

// Encode writes state into a copy of values, overwriting only the keys it
// owns. values may be nil.
func (s *Synchronizer) Encode(state State, values url.Values) url.Values {
	out := make(url.Values, len(values)+3)
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}

	out.Set(ParamSortBy, state.Sort.Field)
	out.Set(ParamSortDesc, strconv.FormatBool(state.Sort.Desc))
	out.Set(ParamTitle, state.Filter)
	return out
}

func (s *Synchronizer) validField(field string) bool {
	if s.sortable == nil {
		return true
	}
	return s.sortable(field)
}

// Hydrator applies persisted state exactly once. It starts uninitialized and
// moves to hydrated on the first call to Hydrate; the transition is terminal.
type Hydrator struct {
	sync     *Synchronizer
	hydrated bool
}

// NewHydrator returns an uninitialized Hydrator decoding with s.
func NewHydrator(s *Synchronizer) *Hydrator {
	return &Hydrator{sync: s}
}

// Hydrate decodes values and reports true the first time it is called.
// Later calls do nothing and report false, so state changed after hydration
// is never overwritten.
func (h *Hydrator) Hydrate(values url.Values) (State, bool) {
	if h.hydrated {
		return State{}, false
	}
	h.hydrated = true
	return h.sync.Decode(values), true
}

// Hydrated reports whether persisted state has been applied.
func (h *Hydrator) Hydrated() bool {
	return h.hydrated
}
