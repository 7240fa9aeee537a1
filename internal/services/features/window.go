package features

import (
	"PatternLab/internal/domain/models"
)

// WindowRows is the fixed row count of a classifier feature window.
const WindowRows = 100

// BuildWindow turns the pattern's formation window into classifier input. Prices are
// expressed relative to the first close, volume relative to the window mean. Windows
// longer than rows keep their latest bars; shorter ones are padded with zero rows at the end.
func BuildWindow(bars []models.Bar, p models.Pattern, rows int) models.FeatureWindow {
	if rows <= 0 {
		rows = WindowRows
	}
	lo, hi := p.WindowStart, p.WindowEnd
	if lo < 0 {
		lo = 0
	}
	if hi >= len(bars) {
		hi = len(bars) - 1
	}
	w := models.FeatureWindow{Type: p.Type, Rows: make([][]float64, rows)}
	var seg []models.Bar
	if hi >= lo {
		seg = bars[lo : hi+1]
	}
	if len(seg) > rows {
		seg = seg[len(seg)-rows:]
	}
	var ref, vol float64
	if len(seg) > 0 {
		ref = seg[0].Close
		for _, b := range seg {
			vol += b.Volume
		}
		vol /= float64(len(seg))
	}
	for i := range w.Rows {
		row := make([]float64, 5)
		if i < len(seg) && ref > 0 {
			b := seg[i]
			row[0] = b.Open/ref - 1
			row[1] = b.High/ref - 1
			row[2] = b.Low/ref - 1
			row[3] = b.Close/ref - 1
			if vol > 0 {
				row[4] = b.Volume / vol
			}
		}
		w.Rows[i] = row
	}
	if ref > 0 {
		w.Valid = len(seg)
	}
	return w
}
