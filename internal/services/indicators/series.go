package indicators

import "math"

// Series helpers return slices aligned to the input with NaN for warmup.
// Every value at i depends only on inputs at indices <= i.

// SMA over the last p points.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EMA with smoothing 2/(p+1), seeded by the first value with no warmup correction.
// Leading NaNs in x are skipped and the first finite value becomes the seed.
func EMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	k := 2.0 / float64(p+1)
	seeded := false
	for i, v := range x {
		if !seeded {
			if math.IsNaN(v) {
				out[i] = math.NaN()
				continue
			}
			out[i] = v
			seeded = true
			continue
		}
		out[i] = (v-out[i-1])*k + out[i-1]
	}
	return out
}

// RollingStd is the sample (n-1) standard deviation over the last p points.
func RollingStd(x []float64, p int) []float64 {
	return rollingStd(x, p, 1)
}

// RollingPopStd is the population standard deviation over the last p points.
func RollingPopStd(x []float64, p int) []float64 {
	return rollingStd(x, p, 0)
}

func rollingStd(x []float64, p, ddof int) []float64 {
	if p <= ddof {
		return nil
	}
	out := make([]float64, len(x))
	for i := range x {
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stddev(x[i-p+1:i+1], ddof)
	}
	return out
}

// stddev uses a two-pass mean so flat windows give exactly zero.
// Any NaN in w propagates.
func stddev(w []float64, ddof int) float64 {
	n := len(w)
	if n <= ddof {
		return math.NaN()
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-ddof))
}

// RollingMax and RollingMin cover the last p points.
func RollingMax(x []float64, p int) []float64 {
	return rollingExtreme(x, p, math.Max)
}

func RollingMin(x []float64, p int) []float64 {
	return rollingExtreme(x, p, math.Min)
}

func rollingExtreme(x []float64, p int, pick func(a, b float64) float64) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range x {
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		m := x[i-p+1]
		for _, v := range x[i-p+2 : i+1] {
			m = pick(m, v)
		}
		out[i] = m
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
