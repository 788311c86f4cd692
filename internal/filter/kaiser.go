// Package filter designs Kaiser-windowed FIR filters and converts sample rates with them.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"

	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/mathutil"
)

// ErrInvalidDesign is returned for unusable filter parameters.
var ErrInvalidDesign = errors.New("invalid filter design")

// KaiserWindow returns a symmetric Kaiser window with peak 1.
//
//	w[n] = I₀(β·sqrt(1 - ((n - α)/α)²)) / I₀(β), α = (N-1)/2
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}
	window := make([]float64, length)
	if length == 1 {
		window[0] = 1
		return window
	}

	alpha := float64(length-1) / 2
	i0Beta := mathutil.BesselI0(beta)
	for n := range length {
		x := (float64(n) - alpha) / alpha
		window[n] = mathutil.BesselI0(beta*math.Sqrt(max(0, 1-x*x))) / i0Beta
	}
	return window
}

// Params describes a low-pass FIR.
type Params struct {
	// NumTaps is the filter length, odd for a symmetric linear-phase filter.
	NumTaps int

	// Cutoff is the -6 dB point as a fraction of the sample rate, in (0, 0.5).
	Cutoff float64

	// Attenuation is the stopband attenuation in dB.
	Attenuation float64

	// Gain is the DC gain.
	Gain float64
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch {
	case p.NumTaps < minFilterTaps || p.NumTaps > maxFilterTaps:
		return fmt.Errorf("%w: %d taps (want %d..%d)", ErrInvalidDesign, p.NumTaps, minFilterTaps, maxFilterTaps)
	case p.Cutoff <= 0 || p.Cutoff >= nyquistFraction:
		return fmt.Errorf("%w: cutoff %g must be in (0, 0.5)", ErrInvalidDesign, p.Cutoff)
	case p.Attenuation < 0:
		return fmt.Errorf("%w: attenuation %g dB", ErrInvalidDesign, p.Attenuation)
	case p.Gain <= 0:
		return fmt.Errorf("%w: gain %g", ErrInvalidDesign, p.Gain)
	}
	return nil
}

// DesignLowPass returns Kaiser-windowed sinc coefficients normalized to p.Gain at DC.
func DesignLowPass(p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	win := KaiserWindow(p.NumTaps, mathutil.KaiserBeta(p.Attenuation))
	center := float64(p.NumTaps-1) / 2
	taps := make([]float64, p.NumTaps)
	for n := range taps {
		taps[n] = sinc(p.Cutoff, float64(n)-center) * win[n]
	}

	if sum := f64.Sum(taps); math.Abs(sum) > sincZeroThreshold {
		f64.Scale(taps, taps, p.Gain/sum)
	}
	return taps, nil
}

// DesignLowPassAuto sizes the filter for the given transition band (fraction of the
// sample rate) and attenuation, with unity gain.
func DesignLowPassAuto(cutoff, transitionBW, attenuation float64) ([]float64, error) {
	return DesignLowPass(Params{
		NumTaps:     mathutil.EstimateFilterLength(attenuation, transitionBW),
		Cutoff:      cutoff,
		Attenuation: attenuation,
		Gain:        1,
	})
}

// sinc is the ideal low-pass impulse response sin(2π·fc·x)/(π·x).
func sinc(fc, x float64) float64 {
	if math.Abs(x) < sincZeroThreshold {
		return 2 * fc
	}
	return math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
}

// Apply runs x through the FIR taps and returns len(x) samples, aligned to the input
// start so the filter's group delay is preserved.
func Apply(taps, x []float64) []float64 {
	full := dsp.ConvolveFull(x, taps)
	if len(full) < len(x) {
		return full
	}
	return full[:len(x)]
}
