package dsp

// SoftwareTrigger rotates x so the first rising crossing of threshold lands at index 0.
//
// A crossing is the first i with x[i] < threshold <= x[i+1]. When there is none
// the result is an unchanged copy of x.
func SoftwareTrigger(x []float64, threshold float64) []float64 {
	idx, ok := FirstRisingCrossing(x, threshold)
	if !ok {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	return Roll(x, -idx)
}

// FirstRisingCrossing returns the index i of the first x[i] < threshold <= x[i+1].
func FirstRisingCrossing(x []float64, threshold float64) (int, bool) {
	for i := 0; i+1 < len(x); i++ {
		if x[i] < threshold && x[i+1] >= threshold {
			return i, true
		}
	}
	return 0, false
}

// Roll shifts x cyclically by shift positions: out[(i+shift) mod n] = x[i].
// A negative shift moves samples towards the start.
func Roll(x []float64, shift int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	s := ((shift % n) + n) % n
	copy(out[s:], x[:n-s])
	copy(out[:s], x[n-s:])
	return out
}
