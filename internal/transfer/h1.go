package transfer

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/golang/glog"

	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/filter"
)

// H1Options configures ComputeH1. Zero fields select defaults.
type H1Options struct {
	Segment   int
	Smoothing int
	BandLow   float64
	BandHigh  float64

	// SourceRate is the sample rate of the source signal when it differs from the
	// capture rate, e.g. a WAV stimulus played at 48 kHz. The source is resampled first.
	SourceRate float64
}

func (o H1Options) withDefaults() H1Options {
	if o.Segment == 0 {
		o.Segment = DefaultH1Segment
	}
	if o.Smoothing == 0 {
		o.Smoothing = DefaultH1Smoothing
	}
	if o.BandLow == 0 {
		o.BandLow = DefaultBandLow
	}
	if o.BandHigh == 0 {
		o.BandHigh = DefaultBandHigh
	}
	return o
}

// H1Result is the cross-spectral transfer estimate with its coherence.
type H1Result struct {
	Freqs     []float64
	GainDB    []float64
	Coherence []float64
	PeakDB    float64
	PeakFreq  float64
}

// ComputeH1 estimates H = Pxy/Pxx between a source and the captured device output.
//
// The signals are aligned on their cross-correlation peak and truncated to equal length
// before Welch averaging. The peak is reported inside (BandLow, BandHigh).
func ComputeH1(src, dut []float64, rate float64, opts H1Options) (H1Result, error) {
	opts = opts.withDefaults()
	if rate <= 0 {
		return H1Result{}, fmt.Errorf("%w: rate %g Hz", ErrDegenerate, rate)
	}

	if opts.SourceRate > 0 && opts.SourceRate != rate {
		resampled, err := filter.Resample(src, opts.SourceRate, rate)
		if err != nil {
			return H1Result{}, err
		}
		glog.V(1).Infof("h1: resampled source %g -> %g Hz (%d -> %d samples)", opts.SourceRate, rate, len(src), len(resampled))
		src = resampled
	}

	x, y, err := alignPair(src, dut)
	if err != nil {
		return H1Result{}, err
	}

	cs := dsp.EstimateCrossSpectrum(x, y, rate, opts.Segment)
	h := cs.TransferH1()
	gain := make([]float64, len(h))
	for k, v := range h {
		gain[k] = 20 * math.Log10(cmplx.Abs(v)+h1Epsilon)
	}

	n := len(cs.Freqs)
	gain = dsp.MovingAverageSame(gain, opts.Smoothing)[:n]
	coh := dsp.MovingAverageSame(cs.Coherence(), opts.Smoothing)[:n]

	peak := -1
	for k, f := range cs.Freqs {
		if f > opts.BandLow && f < opts.BandHigh && (peak < 0 || gain[k] > gain[peak]) {
			peak = k
		}
	}
	if peak < 0 {
		return H1Result{}, fmt.Errorf("%w: no bins between %g and %g Hz", ErrDegenerate, opts.BandLow, opts.BandHigh)
	}

	return H1Result{
		Freqs:     cs.Freqs,
		GainDB:    gain,
		Coherence: coh,
		PeakDB:    gain[peak],
		PeakFreq:  cs.Freqs[peak],
	}, nil
}

// alignPair shifts the later of the two signals by the correlation lag of their
// peak-normalized copies and truncates both to the common length.
func alignPair(src, dut []float64) (x, y []float64, err error) {
	normSrc, ok := dsp.NormalizePeak(src)
	if !ok {
		return nil, nil, fmt.Errorf("%w: source is silent", ErrDegenerate)
	}
	normDut, ok := dsp.NormalizePeak(dut)
	if !ok {
		return nil, nil, fmt.Errorf("%w: response is silent", ErrDegenerate)
	}

	lag := dsp.CorrelationLag(normSrc, normDut)
	if lag > 0 {
		dut = dut[min(lag, len(dut)):]
		src = src[:min(len(src), len(dut))]
	} else {
		src = src[min(-lag, len(src)):]
		dut = dut[:min(len(dut), len(src))]
	}

	n := min(len(src), len(dut))
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: %d overlapping samples after alignment", ErrDegenerate, n)
	}
	glog.V(2).Infof("h1: lag %d samples, %d aligned", lag, n)
	return src[:n], dut[:n], nil
}
