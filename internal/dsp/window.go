package dsp

import "gonum.org/v1/gonum/dsp/window"

// HannWindow returns the symmetric Hann window of length n.
// A single-sample window is {1}.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{1}
	}
	return window.NewValues(window.Hann, n)
}

// PeriodicHannWindow returns the periodic (DFT-even) Hann window of length n,
// the first n points of a symmetric window of length n+1.
func PeriodicHannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	return window.NewValues(window.Hann, n+1)[:n]
}

// TukeyTaper multiplies a copy of x by a Tukey window with the given taper fraction.
// Inputs shorter than three samples are returned unchanged.
func TukeyTaper(x []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	if len(out) < 3 {
		return out
	}
	return window.Tukey{Alpha: alpha}.Transform(out)
}
