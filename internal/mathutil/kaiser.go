// Package mathutil provides the scalar math shared by the filter and analysis packages.
package mathutil

import "math"

// BesselI0 computes the modified Bessel function of the first kind, order zero.
//
// It sums the power series Σ ((x/2)^k / k!)² until the next term no longer changes
// the result, which converges for every finite x used by Kaiser windows (|x| < 50).
func BesselI0(x float64) float64 {
	half := x / 2
	sum := 1.0
	term := 1.0
	for k := 1; k <= besselMaxTerms; k++ {
		f := half / float64(k)
		term *= f * f
		sum += term
		if term < sum*besselRelEpsilon {
			break
		}
	}
	return sum
}

// KaiserBeta returns the Kaiser window β achieving the given stopband attenuation in dB.
func KaiserBeta(attenuation float64) float64 {
	switch {
	case attenuation > kaiserAttHigh:
		return kaiserBetaHighCoeff * (attenuation - kaiserBetaHighOffset)
	case attenuation >= kaiserAttMedium:
		d := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(d, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*d
	default:
		return 0
	}
}

// EstimateFilterLength estimates the odd FIR length needed for attenuation (dB)
// over a transition band given as a fraction of the sample rate.
func EstimateFilterLength(attenuation, transitionBW float64) int {
	if transitionBW <= 0 {
		transitionBW = defaultTransitionBW
	}

	n := (attenuation - kaiserLengthOffset) / (kaiserLengthMultiplier * 2 * math.Pi * transitionBW)
	taps := int(math.Ceil(n))
	if taps%2 == 0 {
		taps++
	}
	return min(max(taps, minFilterLength), maxFilterLength)
}
