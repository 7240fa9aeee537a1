package models

// FeatureWindow is the fixed-size classifier input built from a pattern's formation window.
// Rows hold normalised [open, high, low, close, volume]; rows past Valid are zero padding.
type FeatureWindow struct {
	Type  PatternType `json:"type"`
	Rows  [][]float64 `json:"rows"`
	Valid int         `json:"valid"`
}
