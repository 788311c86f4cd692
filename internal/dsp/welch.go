package dsp

import (
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// CrossSpectrum holds averaged one-sided spectral density estimates.
type CrossSpectrum struct {
	Freqs []float64
	Pxx   []float64
	Pyy   []float64
	Pxy   []complex128
}

// Welch estimates the power spectral density of x with Welch's method.
func Welch(x []float64, rate float64, segment int) (freqs, pxx []float64) {
	cs := EstimateCrossSpectrum(x, x, rate, segment)
	return cs.Freqs, cs.Pxx
}

// EstimateCrossSpectrum computes Pxx, Pyy and Pxy = E[conj(X)·Y] for equally long x and y.
//
// Segments of length segment (clamped to the input length) overlap by half, are
// mean-detrended and weighted with a periodic Hann window. Densities are scaled by
// 1/(rate·Σw²) and doubled on every bin except DC and, for even segments, Nyquist.
// Inputs of different lengths are truncated to the shorter one.
func EstimateCrossSpectrum(x, y []float64, rate float64, segment int) CrossSpectrum {
	n := min(len(x), len(y))
	if n == 0 {
		return CrossSpectrum{}
	}
	if segment <= 0 || segment > n {
		segment = n
	}
	overlap := segment / welchOverlapDivisor
	step := segment - overlap
	count := (n - overlap) / step

	win := PeriodicHannWindow(segment)
	scale := 1.0 / (rate * f64.DotProduct(win, win))

	fft := fourier.NewFFT(segment)
	bins := segment/fftHermitianDivisor + 1

	pxx := make([]float64, bins)
	pyy := make([]float64, bins)
	pxy := make([]complex128, bins)

	xs := make([]float64, segment)
	ys := make([]float64, segment)
	xf := make([]complex128, bins)
	yf := make([]complex128, bins)
	xconj := make([]complex128, bins)
	prod := make([]complex128, bins)

	for s := range count {
		start := s * step
		prepareSegment(xs, x[start:start+segment], win)
		prepareSegment(ys, y[start:start+segment], win)

		xf = fft.Coefficients(xf, xs)
		yf = fft.Coefficients(yf, ys)

		for k, v := range xf {
			xconj[k] = cmplx.Conj(v)
			pxx[k] += real(v)*real(v) + imag(v)*imag(v)
		}
		for k, v := range yf {
			pyy[k] += real(v)*real(v) + imag(v)*imag(v)
		}
		c128.Mul(prod, xconj, yf)
		for k, v := range prod {
			pxy[k] += v
		}
	}

	norm := scale / float64(count)
	for k := range bins {
		f := norm
		if k > 0 && !(segment%2 == 0 && k == bins-1) {
			f *= 2
		}
		pxx[k] *= f
		pyy[k] *= f
		pxy[k] *= complex(f, 0)
	}

	return CrossSpectrum{Freqs: RFFTFreqs(segment, rate), Pxx: pxx, Pyy: pyy, Pxy: pxy}
}

func prepareSegment(dst, src, win []float64) {
	m := Mean(src)
	for i, v := range src {
		dst[i] = (v - m) * win[i]
	}
}

// Coherence returns the magnitude-squared coherence |Pxy|²/(Pxx·Pyy).
// Bins where either auto spectrum vanishes are reported as 0.
func (cs CrossSpectrum) Coherence() []float64 {
	out := make([]float64, len(cs.Pxy))
	for k, v := range cs.Pxy {
		den := cs.Pxx[k] * cs.Pyy[k]
		if den <= 0 {
			continue
		}
		out[k] = (real(v)*real(v) + imag(v)*imag(v)) / den
	}
	return out
}

// TransferH1 returns H1 = Pxy/Pxx. Bins with zero input power are reported as 0.
func (cs CrossSpectrum) TransferH1() []complex128 {
	out := make([]complex128, len(cs.Pxy))
	for k, v := range cs.Pxy {
		if cs.Pxx[k] <= 0 {
			continue
		}
		out[k] = v / complex(cs.Pxx[k], 0)
	}
	return out
}
