package dsp

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Spectrum is a one-sided magnitude spectrum with parallel frequency and magnitude bins.
type Spectrum struct {
	Freqs []float64
	Mags  []float64
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return len(s.Freqs) }

// ComputeSpectrum returns the Hann-windowed one-sided amplitude spectrum of x.
//
// For N samples the result has N/2+1 bins at k·rate/N with magnitudes scaled by 2/N.
func ComputeSpectrum(x []float64, rate float64) Spectrum {
	n := len(x)
	if n == 0 {
		return Spectrum{}
	}

	windowed := make([]float64, n)
	copy(windowed, x)
	win := HannWindow(n)
	for i, w := range win {
		windowed[i] *= w
	}
	return magnitude(windowed, rate)
}

// MagnitudeSpectrum is ComputeSpectrum without the window, for inputs that are
// already tapered such as a sliced impulse response.
func MagnitudeSpectrum(x []float64, rate float64) Spectrum {
	if len(x) == 0 {
		return Spectrum{}
	}
	return magnitude(x, rate)
}

func magnitude(x []float64, rate float64) Spectrum {
	n := len(x)
	coeffs := fourier.NewFFT(n).Coefficients(nil, x)
	mags := make([]float64, len(coeffs))
	for k, c := range coeffs {
		mags[k] = cmplx.Abs(c)
	}
	f64.Scale(mags, mags, oneSidedAmplitudeScale/float64(n))

	return Spectrum{Freqs: RFFTFreqs(n, rate), Mags: mags}
}

// RFFTFreqs returns the n/2+1 bin frequencies k·rate/n of a real FFT of length n.
func RFFTFreqs(n int, rate float64) []float64 {
	if n <= 0 {
		return nil
	}
	freqs := make([]float64, n/fftHermitianDivisor+1)
	for k := range freqs {
		freqs[k] = float64(k) * rate / float64(n)
	}
	return freqs
}

// EstimateFundamental returns the frequency of the largest magnitude in [fmin, fmax].
// It returns 0 when the inputs are empty or no bin falls inside the band.
func EstimateFundamental(freqs, mags []float64, fmin, fmax float64) float64 {
	best := -1
	for i, f := range freqs {
		if i >= len(mags) || f < fmin || f > fmax {
			continue
		}
		if best < 0 || mags[i] > mags[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return freqs[best]
}

// EstimateFundamentalDefault searches the 20 Hz to 2 kHz band.
func EstimateFundamentalDefault(freqs, mags []float64) float64 {
	return EstimateFundamental(freqs, mags, DefaultFundamentalMin, DefaultFundamentalMax)
}

// bandMax returns the largest magnitude with lo < f < hi.
func bandMax(s Spectrum, lo, hi float64) (float64, bool) {
	found := false
	peak := math.Inf(-1)
	for i, f := range s.Freqs {
		if f > lo && f < hi {
			found = true
			peak = max(peak, s.Mags[i])
		}
	}
	return peak, found
}

// SelectiveTHD measures total harmonic distortion in percent using only the energy
// at harmonic peaks 2..nHarmonics of fundamental.
//
// Each harmonic peak is the maximum within ±5 Hz, reduced by the mean magnitude of the
// surrounding ±15 Hz band (excluding the peak window) and floored at zero. The result
// is 100·sqrt(Σh²)/F where F is the fundamental peak. It is 0 when the fundamental
// window holds no bins or its peak is zero.
func SelectiveTHD(x []float64, rate, fundamental float64, nHarmonics int) float64 {
	spec := ComputeSpectrum(x, rate)

	fundMag, ok := bandMax(spec, fundamental-thdPeakWindowHz, fundamental+thdPeakWindowHz)
	if !ok || fundMag <= 0 {
		return 0
	}

	var sumSq float64
	for h := 2; h <= nHarmonics; h++ {
		target := fundamental * float64(h)
		lo, hi := target-thdPeakWindowHz, target+thdPeakWindowHz

		peak, ok := bandMax(spec, lo, hi)
		if !ok {
			continue
		}

		nlo := target - thdPeakWindowHz*thdNoiseBandFactor
		nhi := target + thdPeakWindowHz*thdNoiseBandFactor
		var noise []float64
		for i, f := range spec.Freqs {
			inPeak := f > lo && f < hi
			if f > nlo && f < nhi && !inPeak {
				noise = append(noise, spec.Mags[i])
			}
		}
		floor := 0.0
		if len(noise) > 0 {
			floor = floats.Sum(noise) / float64(len(noise))
		}

		if mag := peak - floor; mag > 0 {
			sumSq += mag * mag
		}
	}

	return math.Sqrt(sumSq) / fundMag * thdPercentScale
}
