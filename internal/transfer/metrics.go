package transfer

import (
	"fmt"

	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/mathutil"
)

// GainOptions places the window in which the output peak is reported.
type GainOptions struct {
	PeakCenterMS float64
	PeakWindowMS float64
}

// DefaultGainOptions looks for the output peak within 6 ± 1 ms.
func DefaultGainOptions() GainOptions {
	return GainOptions{PeakCenterMS: DefaultPeakCenterMS, PeakWindowMS: DefaultPeakWindowMS}
}

// Gain compares the peak-to-peak level of a clean input and a device output.
type Gain struct {
	TimeMS []float64
	Clean  []float64 // triggered and truncated
	Dirty  []float64

	VppIn  float64
	VppOut float64
	GainDB float64 // 0 when the input is flat or the output is silent

	PeakTimeMS float64
	PeakValue  float64
}

// GainMetrics triggers both traces at zero as given, keeps the first durationMS
// milliseconds and measures the level change. Callers remove DC first when the
// traces sit on a bias.
func GainMetrics(clean, dirty []float64, rate, durationMS float64, opts GainOptions) (Gain, error) {
	samples := int(durationMS / msPerSecond * rate)
	n := min(samples, len(clean), len(dirty))
	if n <= 0 {
		return Gain{}, fmt.Errorf("%w: no samples in %g ms", ErrDegenerate, durationMS)
	}

	g := Gain{
		TimeMS: make([]float64, n),
		Clean:  dsp.SoftwareTrigger(clean, 0)[:n],
		Dirty:  dsp.SoftwareTrigger(dirty, 0)[:n],
	}
	for i := range g.TimeMS {
		g.TimeMS[i] = float64(i) / rate * msPerSecond
	}

	g.VppIn = dsp.PeakToPeak(g.Clean)
	g.VppOut = dsp.PeakToPeak(g.Dirty)
	if g.VppIn > minVpp {
		if ratio := g.VppOut / g.VppIn; ratio > 0 {
			g.GainDB = mathutil.AmplitudeDB(ratio)
		}
	}

	found := false
	for i, t := range g.TimeMS {
		if t < opts.PeakCenterMS-opts.PeakWindowMS || t > opts.PeakCenterMS+opts.PeakWindowMS {
			continue
		}
		if !found || g.Dirty[i] > g.PeakValue {
			g.PeakTimeMS, g.PeakValue = t, g.Dirty[i]
			found = true
		}
	}
	return g, nil
}

// PrepareTransferCurve returns peak-normalized source and device samples, the source
// rotated onto the device output, for an XY transfer plot.
func PrepareTransferCurve(src, dut []float64) (x, y []float64, err error) {
	normSrc, ok := dsp.NormalizePeak(src)
	if !ok {
		return nil, nil, fmt.Errorf("%w: source is silent", ErrDegenerate)
	}
	normDut, ok := dsp.NormalizePeak(dut)
	if !ok {
		return nil, nil, fmt.Errorf("%w: response is silent", ErrDegenerate)
	}

	aligned := dsp.SmartAlign(normDut, normSrc)
	n := min(len(aligned), len(normDut))
	return aligned[:n], normDut[:n], nil
}

// NormalizedSpectra returns both spectra scaled to a peak of 1. A spectrum whose
// peak is zero is returned unscaled.
func NormalizedSpectra(clean, dirty []float64, rate float64) (c, d dsp.Spectrum) {
	return normalizedSpectrum(clean, rate), normalizedSpectrum(dirty, rate)
}

func normalizedSpectrum(x []float64, rate float64) dsp.Spectrum {
	spec := dsp.ComputeSpectrum(x, rate)
	if norm, ok := dsp.NormalizePeak(spec.Mags); ok {
		spec.Mags = norm
	}
	return spec
}

// SpectrumData is the spectrum of x with its DC component removed.
func SpectrumData(x []float64, rate float64) dsp.Spectrum {
	return dsp.ComputeSpectrum(dsp.RemoveDC(x), rate)
}
