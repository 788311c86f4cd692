package scope

import (
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/transfer"
)

// Hardware defaults of the stock firmware.
const (
	// DefaultSampleRate is the nominal ADC rate in Hz.
	DefaultSampleRate = config.DefaultSampleRate

	// DefaultBurstSamples is the size of one 's' capture.
	DefaultBurstSamples = config.DefaultBurstSamples

	// DefaultLiveSamples is the size of one 'v' chunk.
	DefaultLiveSamples = config.DefaultLiveSamples

	// DefaultVRef is the ADC reference voltage.
	DefaultVRef = config.DefaultVRef

	// DefaultVMid is the input bias point.
	DefaultVMid = config.DefaultVMid
)

// Analysis defaults.
const (
	thdFundamentalMin = 20.0    // Hz
	thdFundamentalMax = 20000.0 // Hz
	defaultHarmonics  = transfer.DefaultHarmonics
)
