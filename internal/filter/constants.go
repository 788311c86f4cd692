package filter

const (
	// FIR design limits
	minFilterTaps = 3
	maxFilterTaps = 8191

	// Normalized frequencies are fractions of the sample rate, Nyquist is 0.5.
	nyquistFraction = 0.5

	sincZeroThreshold = 1e-10

	// Resampler defaults
	resampleHalfTaps     = 32    // one-sided kernel length at unity ratio
	resampleAttenuation  = 90.0  // dB
	resamplePassbandEdge = 0.475 // fraction of the lower rate that stays flat
)
