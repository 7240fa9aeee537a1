package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// IndicatorSet maps indicator name to its value for one bar.
// Indicators without enough history are absent, never zero.
type IndicatorSet map[string]float64

// Get returns the value and whether it is present.
func (s IndicatorSet) Get(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Has reports whether name is present.
func (s IndicatorSet) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Ratio is a quotient that may be undefined when its denominator is zero.
// Undefined ratios encode as JSON null.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio wraps a finite value.
func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

// UndefinedRatio is the sentinel for a zero denominator.
func UndefinedRatio() Ratio { return Ratio{} }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = UndefinedRatio()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}
