// Package diagnostics checks captured signals for clipping, weak levels and bias drift,
// finds spectral peaks, and calibrates the sample rate against mains hum.
package diagnostics

import (
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/dsp"
)

// Health thresholds in volts.
const (
	ClipFloor      = 0.02 // at or below counts as touching the ground rail
	ClipHeadroom   = 0.05 // within this of VRef counts as touching the supply rail
	WeakPeakToPeak = 0.05
	BiasTolerance  = 0.15 // allowed distance of the mean from VMid
)

// Report summarizes a voltage capture.
type Report struct {
	Min, Max, Mean, PeakToPeak float64

	Clipping bool
	Weak     bool
	Drift    bool // informational only

	Healthy bool
}

// CheckSignalHealth flags clipping first and, only when not clipping, a weak signal.
// Drift of the bias point is reported separately and does not affect Healthy.
// An empty capture is reported as weak.
func CheckSignalHealth(volts []float64, adc config.ADC) Report {
	if len(volts) == 0 {
		glog.Warning("health: empty capture")
		return Report{Weak: true}
	}

	r := Report{
		Min:  floats.Min(volts),
		Max:  floats.Max(volts),
		Mean: dsp.Mean(volts),
	}
	r.PeakToPeak = r.Max - r.Min

	switch {
	case r.Min <= ClipFloor || r.Max >= adc.VRef-ClipHeadroom:
		r.Clipping = true
	case r.PeakToPeak < WeakPeakToPeak:
		r.Weak = true
	}
	r.Drift = !(r.Mean > adc.VMid-BiasTolerance && r.Mean < adc.VMid+BiasTolerance)
	r.Healthy = !r.Clipping && !r.Weak

	glog.Infof("health: DC offset %.3f V (target %.3f V), pk-pk %.3f V", r.Mean, adc.VMid, r.PeakToPeak)
	if r.Clipping {
		glog.Warningf("health: signal clipping, range %.3f..%.3f V hits the rails", r.Min, r.Max)
	}
	if r.Weak {
		glog.Warningf("health: weak signal, %.3f V pk-pk is barely above the noise floor", r.PeakToPeak)
	}
	if r.Drift {
		glog.Warningf("health: bias drifting to %.3f V, check the VMid divider", r.Mean)
	}
	return r
}
