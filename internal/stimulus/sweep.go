// Package stimulus synthesizes measurement signals: exponential sine sweeps with their
// matched inverse filters, and periodic test waveforms.
package stimulus

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"
)

// Errors returned for unusable stimulus parameters.
var (
	ErrInvalidParameter = errors.New("invalid stimulus parameter")
	ErrFrequencyOrder   = fmt.Errorf("%w: require 0 < start < end", ErrInvalidParameter)
	ErrUnknownShape     = fmt.Errorf("%w: unknown shape", ErrInvalidParameter)
)

// Default sweep used for Bode measurements.
const (
	DefaultSweepStart    = 20.0    // Hz
	DefaultSweepEnd      = 20000.0 // Hz
	DefaultSweepDuration = 5.0     // seconds
)

// Weighting selects the amplitude envelope of the inverse filter.
type Weighting int

const (
	// WeightDuration is w(t) = exp(t·ln R / Duration). Sweep and inverse convolve to a
	// flat response only for a 1 s sweep; longer sweeps tilt toward low frequencies.
	WeightDuration Weighting = iota

	// WeightFrequency is w(t) = R^t, proportional to the instantaneous frequency.
	// Sweep and inverse convolve to a flat response for any duration.
	WeightFrequency
)

// Sweep describes an exponential sine sweep.
//
// The instantaneous frequency is Start·R^t with R = (End/Start)^(1/Duration), so the sweep
// covers the same time per octave.
type Sweep struct {
	Start     float64 // Hz
	End       float64 // Hz
	Duration  float64 // seconds
	Rate      float64 // Hz
	Amplitude float64

	// Weighting shapes InverseFilter; the zero value is WeightDuration.
	Weighting Weighting
}

// DefaultSweep returns the 20 Hz to 20 kHz, 5 s sweep at the given rate and unit amplitude.
func DefaultSweep(rate float64) Sweep {
	return Sweep{
		Start:     DefaultSweepStart,
		End:       DefaultSweepEnd,
		Duration:  DefaultSweepDuration,
		Rate:      rate,
		Amplitude: 1,
	}
}

// Validate checks the sweep parameters.
func (s Sweep) Validate() error {
	if !(s.Start > 0 && s.Start < s.End) {
		return fmt.Errorf("%w: start %g Hz, end %g Hz", ErrFrequencyOrder, s.Start, s.End)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration %g s", ErrInvalidParameter, s.Duration)
	}
	if s.Rate <= 0 {
		return fmt.Errorf("%w: rate %g Hz", ErrInvalidParameter, s.Rate)
	}
	if s.Weighting != WeightDuration && s.Weighting != WeightFrequency {
		return fmt.Errorf("%w: weighting %d", ErrInvalidParameter, s.Weighting)
	}
	return nil
}

// Len is the number of samples, round(Duration·Rate).
func (s Sweep) Len() int {
	return int(math.Round(s.Duration * s.Rate))
}

// growth returns R, the per-second frequency ratio.
func (s Sweep) growth() float64 {
	return math.Pow(s.End/s.Start, 1/s.Duration)
}

// unit renders sin(B·(R^t - 1)) with B = 2π·Start/ln R.
func (s Sweep) unit() []float64 {
	n := s.Len()
	r := s.growth()
	b := 2 * math.Pi * s.Start / math.Log(r)

	sweep := make([]float64, n)
	for i := range n {
		sweep[i] = math.Sin(b * (math.Pow(r, float64(i)/s.Rate) - 1))
	}
	return sweep
}

// envelope returns the inverse filter weights w(t) for each sample.
func (s Sweep) envelope() []float64 {
	lnR := math.Log(s.growth())
	if s.Weighting != WeightFrequency {
		lnR /= s.Duration
	}
	w := make([]float64, s.Len())
	for i := range w {
		w[i] = math.Exp(float64(i) / s.Rate * lnR)
	}
	return w
}

// Generate renders the sweep.
func (s Sweep) Generate() ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := s.unit()
	f64.Scale(out, out, s.Amplitude)
	return out, nil
}

// InverseFilter returns the unit sweep weighted by the Weighting envelope, time-reversed
// and normalized to a peak of 1.
func (s Sweep) InverseFilter() ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sweep, env := s.unit(), s.envelope()
	n := len(sweep)
	inv := make([]float64, n)
	peak := 0.0
	for i := range n {
		v := sweep[n-1-i] * env[n-1-i]
		inv[i] = v
		peak = max(peak, math.Abs(v))
	}
	if peak > 0 {
		f64.Scale(inv, inv, 1/peak)
	}
	return inv, nil
}
