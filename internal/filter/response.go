package filter

import (
	"math"

	"github.com/tphakala/go-scope/internal/mathutil"
)

// Response is a filter's frequency response sampled at chosen frequencies.
type Response struct {
	Freqs     []float64 // Hz
	Magnitude []float64 // linear
	Phase     []float64 // radians
}

// MagnitudeDB returns the magnitude in dB.
func (r Response) MagnitudeDB() []float64 {
	out := make([]float64, len(r.Magnitude))
	for i, m := range r.Magnitude {
		out[i] = mathutil.AmplitudeDB(m)
	}
	return out
}

// FrequencyResponse evaluates H(e^jω) = Σ h[n]·e^(-jωn) of taps at each frequency in Hz.
func FrequencyResponse(taps, freqs []float64, rate float64) Response {
	r := Response{
		Freqs:     append([]float64(nil), freqs...),
		Magnitude: make([]float64, len(freqs)),
		Phase:     make([]float64, len(freqs)),
	}
	for k, f := range freqs {
		omega := 2 * math.Pi * f / rate
		var re, im float64
		for n, h := range taps {
			re += h * math.Cos(omega*float64(n))
			im -= h * math.Sin(omega*float64(n))
		}
		r.Magnitude[k] = math.Hypot(re, im)
		r.Phase[k] = math.Atan2(im, re)
	}
	return r
}
