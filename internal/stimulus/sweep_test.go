package stimulus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/testutil"
)

func TestSweepValidate(t *testing.T) {
	tests := []struct {
		name    string
		sweep   Sweep
		wantErr error
	}{
		{"valid", Sweep{Start: 20, End: 20000, Duration: 1, Rate: 48000, Amplitude: 1}, nil},
		{"start equals end", Sweep{Start: 100, End: 100, Duration: 1, Rate: 48000}, ErrFrequencyOrder},
		{"reversed", Sweep{Start: 2000, End: 20, Duration: 1, Rate: 48000}, ErrFrequencyOrder},
		{"zero start", Sweep{Start: 0, End: 20, Duration: 1, Rate: 48000}, ErrFrequencyOrder},
		{"negative start", Sweep{Start: -5, End: 20, Duration: 1, Rate: 48000}, ErrFrequencyOrder},
		{"zero duration", Sweep{Start: 20, End: 200, Duration: 0, Rate: 48000}, ErrInvalidParameter},
		{"zero rate", Sweep{Start: 20, End: 200, Duration: 1, Rate: 0}, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sweep.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrInvalidParameter)

			_, err = tt.sweep.Generate()
			require.ErrorIs(t, err, tt.wantErr)
			_, err = tt.sweep.InverseFilter()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSweepGenerate(t *testing.T) {
	s := Sweep{Start: 20, End: 20000, Duration: 0.5, Rate: 48000, Amplitude: 0.8}
	x, err := s.Generate()
	require.NoError(t, err)
	require.Len(t, x, 24000)

	assert.InDelta(t, 0.0, x[0], 1e-15, "phase starts at zero")
	testutil.AssertAllInRange(t, x, -0.8, 0.8)

	// the first quarter of the sweep stays below 20·1000^0.25 ≈ 112 Hz
	spec := dsp.ComputeSpectrum(x[:6000], s.Rate)
	peak := spec.Freqs[testutil.PeakIndex(spec.Mags)]
	t.Logf("first quarter spectral peak at %.1f Hz", peak)
	assert.Less(t, peak, 130.0)
}

func TestSweepInverseOrthogonality(t *testing.T) {
	s := Sweep{Start: 20, End: 20000, Duration: 1, Rate: 48000, Amplitude: 1}
	x, err := s.Generate()
	require.NoError(t, err)
	inv, err := s.InverseFilter()
	require.NoError(t, err)
	require.Len(t, inv, len(x))

	peakAbs := 0.0
	for _, v := range inv {
		peakAbs = max(peakAbs, math.Abs(v))
	}
	assert.InDelta(t, 1.0, peakAbs, 1e-12, "inverse filter is peak normalized")

	ir := dsp.ConvolveFull(x, inv)
	require.Len(t, ir, 2*len(x)-1)

	abs := make([]float64, len(ir))
	total := 0.0
	for i, v := range ir {
		abs[i] = math.Abs(v)
		total += v * v
	}
	peak := testutil.PeakIndex(abs)
	assert.InDelta(t, len(x)-1, peak, 2, "impulse arrives at the center of the full convolution")

	const half = 240 // 5 ms
	near := 0.0
	for i := peak - half; i <= peak+half; i++ {
		near += ir[i] * ir[i]
	}
	t.Logf("peak at %d, energy within ±%d samples: %.4f", peak, half, near/total)
	assert.Greater(t, near/total, 0.9)
}

// referenceInverse builds the reversed, peak-normalized inverse filter with weight
// exp(t·ln(R)·scale).
func referenceInverse(s Sweep, scale float64) []float64 {
	r := math.Pow(s.End/s.Start, 1/s.Duration)
	b := 2 * math.Pi * s.Start / math.Log(r)
	n := s.Len()
	out := make([]float64, n)
	peak := 0.0
	for i := range n {
		tt := float64(n-1-i) / s.Rate
		out[i] = math.Sin(b*(math.Pow(r, tt)-1)) * math.Exp(tt*math.Log(r)*scale)
		peak = max(peak, math.Abs(out[i]))
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

func TestInverseFilterWeighting(t *testing.T) {
	tests := []struct {
		name      string
		weighting Weighting
		scale     float64
		span      float64 // w(end) / w(0)
	}{
		{"duration", WeightDuration, 1.0 / 5, math.Pow(1000, 1.0/5)},
		{"frequency", WeightFrequency, 1, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sweep{Start: 20, End: 20000, Duration: 5, Rate: 8000, Amplitude: 1, Weighting: tt.weighting}
			inv, err := s.InverseFilter()
			require.NoError(t, err)

			want := referenceInverse(s, tt.scale)
			require.Len(t, inv, len(want))
			for i := range want {
				require.InDelta(t, want[i], inv[i], 1e-9, "sample %d", i)
			}

			env := s.envelope()
			assert.InDelta(t, 1.0, env[0], 0)
			testutil.AssertRelativeError(t, tt.span, env[len(env)-1], 1e-3)
		})
	}

	bad := Sweep{Start: 20, End: 20000, Duration: 1, Rate: 8000, Weighting: Weighting(7)}
	_, err := bad.InverseFilter()
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDefaultSweep(t *testing.T) {
	s := DefaultSweep(97793.1)
	require.NoError(t, s.Validate())
	assert.Equal(t, int(math.Round(5*97793.1)), s.Len())
}
