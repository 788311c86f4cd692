package dsp

// MovingAverageSame smooths x with a boxcar of width w, returning the centered
// max(len(x), w) samples of the full convolution with ones(w)/w.
//
// Edge samples are divided by w like every other sample, so they are pulled towards
// zero where the box overhangs the signal.
func MovingAverageSame(x []float64, w int) []float64 {
	n := len(x)
	if n == 0 || w <= 0 {
		return append([]float64(nil), x...)
	}
	if w == 1 {
		return append([]float64(nil), x...)
	}

	prefix := make([]float64, n+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	// full[k] = Σ x[j] for max(0, k-w+1) <= j <= min(k, n-1), divided by w
	full := func(k int) float64 {
		lo := max(0, k-w+1)
		hi := min(k, n-1)
		if hi < lo {
			return 0
		}
		return (prefix[hi+1] - prefix[lo]) / float64(w)
	}

	outLen := max(n, w)
	offset := (min(n, w) - 1) / 2
	out := make([]float64, outLen)
	for i := range out {
		out[i] = full(offset + i)
	}
	return out
}
