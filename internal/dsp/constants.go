package dsp

// Spectrum constants
const (
	// One-sided amplitude normalization: |X[k]| · 2/N.
	oneSidedAmplitudeScale = 2.0

	// Default search band for EstimateFundamental (Hz).
	DefaultFundamentalMin = 20.0
	DefaultFundamentalMax = 2000.0
)

// Selective THD constants
const (
	// Half width of the peak search window around each harmonic (Hz).
	thdPeakWindowHz = 5.0

	// The local noise band is this many peak windows wide on each side.
	thdNoiseBandFactor = 3.0

	thdPercentScale = 100.0

	// DefaultHarmonics is the harmonic count used by SelectiveTHD callers that do not care.
	DefaultHarmonics = 10
)

// FFT convolution constants
const (
	// Below this kernel length direct convolution beats the FFT.
	minKernelForFFT = 64

	// Smallest FFT block used by the overlap-add convolver.
	defaultFFTBlockSize = 512

	// Real FFT of size N has N/2 + 1 unique bins.
	fftHermitianDivisor = 2
)

// Welch constants
const (
	// DefaultSegmentLength gives ~24 Hz resolution at 97.8 kHz.
	DefaultSegmentLength = 4096

	// Segments overlap by half their length.
	welchOverlapDivisor = 2
)
