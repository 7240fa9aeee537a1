package patterns

// Peaks returns local maxima of x. Index i qualifies when x[i] is strictly greater than
// the order values before it and not below the order values after it, so a plateau
// resolves to its earliest index. Edges without full neighbourhoods are skipped.
func Peaks(x []float64, order int) []int {
	return extrema(x, order, func(a, b float64) bool { return a > b })
}

// Troughs mirrors Peaks for local minima.
func Troughs(x []float64, order int) []int {
	return extrema(x, order, func(a, b float64) bool { return a < b })
}

func extrema(x []float64, order int, beats func(a, b float64) bool) []int {
	if order < 1 {
		order = 1
	}
	var out []int
	for i := order; i < len(x)-order; i++ {
		ok := true
		for j := i - order; j < i && ok; j++ {
			ok = beats(x[i], x[j])
		}
		for j := i + 1; j <= i+order && ok; j++ {
			ok = !beats(x[j], x[i])
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}
