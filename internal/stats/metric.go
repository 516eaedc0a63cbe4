package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// Metric is a computed statistic. A metric whose inputs had a zero
// denominator is undefined; it is carried as NaN and must be rendered as such.
type Metric float64

// Undefined returns the undefined metric.
func Undefined() Metric { return Metric(math.NaN()) }

// Defined reports whether m holds a finite number.
func (m Metric) Defined() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float returns the value and whether it is defined.
func (m Metric) Float() (float64, bool) {
	return float64(m), m.Defined()
}

func (m Metric) String() string {
	if !m.Defined() {
		return "n/a"
	}
	return strconv.FormatFloat(float64(m), 'f', -1, 64)
}

// MarshalJSON encodes undefined metrics as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(m))
}

// MarshalYAML encodes undefined metrics as null.
func (m Metric) MarshalYAML() (interface{}, error) {
	if !m.Defined() {
		return nil, nil
	}
	return float64(m), nil
}

func ratio(num, den float64) Metric {
	if den == 0 {
		return Undefined()
	}
	return Metric(num / den)
}
