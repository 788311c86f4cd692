package transfer

// Deconvolution window around the linear impulse.
const (
	DefaultPreWindowMS   = 2.0  // excludes harmonic pre-echoes
	DefaultPostWindowMS  = 50.0 // captures the decay
	DefaultTukeyAlpha    = 0.1
	DefaultBodeSmoothing = 20 // bins
)

// H1 estimator defaults.
const (
	DefaultH1Segment   = 4096
	DefaultH1Smoothing = 5
	DefaultBandLow     = 20.0    // Hz, exclusive
	DefaultBandHigh    = 20000.0 // Hz, exclusive

	h1Epsilon = 1e-9
)

// Harmonic analysis.
const (
	harmonicWindowHz    = 10.0
	DefaultHarmonics    = 10
	ComparisonHarmonics = 6
)

// Gain metrics.
const (
	DefaultPeakCenterMS = 6.0
	DefaultPeakWindowMS = 1.0

	minVpp      = 1e-6
	msPerSecond = 1000.0
)

// Labels used by CompareSpectra.
const (
	LabelClean = "Clean Input"
	LabelDUT   = "Device Output"
)
