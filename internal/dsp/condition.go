// Package dsp implements the signal-conditioning and spectral primitives used by the scope.
//
// Every function is pure: inputs are never modified and results are freshly allocated.
package dsp

import (
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-scope/internal/config"
)

// RawToVolts scales ADC counts to volts: raw / MaxValue · VRef.
func RawToVolts(raw []uint16, adc config.ADC) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = adc.Volts(v)
	}
	return out
}

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return f64.Sum(x) / float64(len(x))
}

// RemoveDC subtracts the mean from x.
func RemoveDC(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.AddConst(-Mean(x), out)
	return out
}

// PeakToPeak returns max(x) - min(x), or 0 for an empty slice.
func PeakToPeak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x) - floats.Min(x)
}

// PeakAmplitude is the largest excursion from the mean.
func PeakAmplitude(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := Mean(x)
	return max(floats.Max(x)-m, m-floats.Min(x))
}

// NormalizePeak divides x by its largest absolute value.
// The boolean is false when x is all zeros, in which case a plain copy is returned.
func NormalizePeak(x []float64) ([]float64, bool) {
	out := make([]float64, len(x))
	copy(out, x)
	peak := 0.0
	for _, v := range x {
		peak = max(peak, abs(v))
	}
	if peak == 0 {
		return out, false
	}
	f64.Scale(out, out, 1/peak)
	return out, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
