package mathutil

// Bessel series limits
const (
	besselMaxTerms   = 500
	besselRelEpsilon = 1e-17
)

// Kaiser window formula constants (Kaiser & Schafer empirical fits)
const (
	kaiserAttHigh          = 50.0 // dB
	kaiserAttMedium        = 21.0 // dB
	kaiserBetaHighCoeff    = 0.1102
	kaiserBetaHighOffset   = 8.7
	kaiserBetaMediumCoeff1 = 0.5842
	kaiserBetaMediumPower  = 0.4
	kaiserBetaMediumCoeff2 = 0.07886

	// N ≈ (att - 8) / (2.285 · 2π · Δf)
	kaiserLengthOffset     = 8.0
	kaiserLengthMultiplier = 2.285

	minFilterLength     = 3
	maxFilterLength     = 8191
	defaultTransitionBW = 0.01
)

// Decibel constants
const (
	dbAmplitudeFactor = 20.0
	dbPowerFactor     = 10.0

	// MinMagnitude is the floor applied before taking a logarithm.
	MinMagnitude = 1e-12
)
