package models

// OptionKind is call or put.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// OptionPosition is the open interest and gamma of one listed contract.
type OptionPosition struct {
	Strike       float64    `json:"strike"`
	Kind         OptionKind `json:"kind"`
	Gamma        float64    `json:"gamma"`
	OpenInterest float64    `json:"open_interest"`
}

// OptionsChain is the raw options snapshot for one bar as supplied by a data source.
type OptionsChain struct {
	CurrentIV     float64            `json:"current_iv"`
	IV52wHigh     float64            `json:"iv_52w_high"`
	IV52wLow      float64            `json:"iv_52w_low"`
	IVHistory     []float64          `json:"iv_history,omitempty"`
	TermStructure map[string]float64 `json:"term_structure,omitempty"`
	Skew          map[string]float64 `json:"skew,omitempty"`
	PutVolumes    map[string]float64 `json:"put_volumes,omitempty"`
	CallVolumes   map[string]float64 `json:"call_volumes,omitempty"`
	Positions     []OptionPosition   `json:"positions,omitempty"`
}

// OptionsContext is the derived per-bar options view. Nil pointers mark values
// that could not be computed (degenerate denominators or missing inputs).
type OptionsContext struct {
	IVRank               *float64           `json:"iv_rank"`
	IVPercentile         *float64           `json:"iv_percentile"`
	HistoricalVolatility *float64           `json:"historical_volatility"`
	TermStructure        map[string]float64 `json:"term_structure,omitempty"`
	Skew                 map[string]float64 `json:"skew,omitempty"`
	GammaExposure        float64            `json:"gamma_exposure"`
	PutCallRatio         Ratio              `json:"put_call_ratio"`
	OpenInterest         map[string]float64 `json:"open_interest,omitempty"`
	MaxPain              *float64           `json:"max_pain"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// AlignOptions maps chains keyed by unix millis onto bars, leaving nil where no snapshot exists.
func AlignOptions(bars []Bar, byTS map[int64]*OptionsChain) []*OptionsChain {
	if len(byTS) == 0 {
		return nil
	}
	out := make([]*OptionsChain, len(bars))
	for i, b := range bars {
		out[i] = byTS[b.Timestamp.UnixMilli()]
	}
	return out
}
