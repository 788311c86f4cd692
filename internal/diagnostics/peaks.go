package diagnostics

import (
	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-scope/internal/dsp"
)

const (
	peakHeightFraction = 0.1
	peakMinDistance    = 50 // bins
	peakTopCount       = 5
)

// PeakReport lists the strongest spectral peaks, loudest first.
type PeakReport struct {
	Dominant float64   // Hz, 0 when no peak was found
	Top      []float64 // Hz
}

// AnalyzeSpectrumPeaks finds up to five peaks of at least 10% of the spectral maximum,
// at least 50 bins apart.
func AnalyzeSpectrumPeaks(volts []float64, rate float64) PeakReport {
	spec := dsp.ComputeSpectrum(dsp.RemoveDC(volts), rate)
	if spec.Len() == 0 {
		return PeakReport{}
	}

	height := floats.Max(spec.Mags) * peakHeightFraction
	peaks := dsp.SortByHeight(spec.Mags, dsp.FindPeaks(spec.Mags, height, peakMinDistance))
	if len(peaks) > peakTopCount {
		peaks = peaks[:peakTopCount]
	}

	r := PeakReport{Top: make([]float64, len(peaks))}
	for i, p := range peaks {
		r.Top[i] = spec.Freqs[p]
	}
	if len(r.Top) > 0 {
		r.Dominant = r.Top[0]
	}

	glog.Infof("pitch check: %.1f Hz dominant", r.Dominant)
	if len(r.Top) > 1 {
		glog.V(1).Infof("pitch check: secondary peaks %.1f Hz", r.Top[1:])
	}
	return r
}
