package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-scope/internal/filter"
	"github.com/tphakala/go-scope/internal/stimulus"
	"github.com/tphakala/go-scope/internal/testutil"
)

const testRate = 48000.0

func testSweep() stimulus.Sweep {
	return stimulus.Sweep{Start: 20, End: 20000, Duration: 1, Rate: testRate, Amplitude: 1}
}

func bandValues(freqs, values []float64, lo, hi float64) []float64 {
	var out []float64
	for i, f := range freqs {
		if f >= lo && f <= hi {
			out = append(out, values[i])
		}
	}
	return out
}

func TestComputeImpulseResponsePeak(t *testing.T) {
	sweep := testSweep()
	x, err := sweep.Generate()
	require.NoError(t, err)

	for _, delay := range []int{0, 100, 1000} {
		padded := append(make([]float64, delay), x...)
		ir, err := ComputeImpulseResponse(padded, sweep)
		require.NoError(t, err)

		assert.Len(t, ir.Samples, len(padded)+len(x)-1)
		assert.InDelta(t, len(x)-1+delay, ir.PeakIndex, 2, "delay %d", delay)
	}

	_, err = ComputeImpulseResponse(nil, sweep)
	require.ErrorIs(t, err, ErrDegenerate)

	_, err = ComputeImpulseResponse(x, stimulus.Sweep{Start: 100, End: 10, Duration: 1, Rate: testRate})
	require.ErrorIs(t, err, stimulus.ErrFrequencyOrder)
}

func bandMean(res BodeResult, lo, hi float64) float64 {
	v := bandValues(res.Freqs, res.GainDB, lo, hi)
	return floats.Sum(v) / float64(len(v))
}

func TestComputeBodeWeightingTilt(t *testing.T) {
	// sweep ⊛ inverse ∝ f^(1/D - 1) under duration weighting: -3 dB/octave at D = 2
	tests := []struct {
		name      string
		weighting stimulus.Weighting
		lo, hi    float64 // expected 1 kHz minus 4 kHz gain, dB
	}{
		{"duration", stimulus.WeightDuration, 3.5, 9},
		{"frequency", stimulus.WeightFrequency, -2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweep := stimulus.Sweep{Start: 20, End: 20000, Duration: 2, Rate: testRate, Amplitude: 1, Weighting: tt.weighting}
			x, err := sweep.Generate()
			require.NoError(t, err)

			res, err := ComputeBode(x, testRate, BodeOptions{Sweep: sweep})
			require.NoError(t, err)
			testutil.AssertNoNaNOrInf(t, res.GainDB)

			tilt := bandMean(res, 800, 1200) - bandMean(res, 3200, 4800)
			t.Logf("%s weighting: 1 kHz - 4 kHz = %.2f dB", tt.name, tilt)
			testutil.AssertInRange(t, tilt, tt.lo, tt.hi)
		})
	}
}

func TestComputeBodeIdentity(t *testing.T) {
	sweep := testSweep()
	x, err := sweep.Generate()
	require.NoError(t, err)

	res, err := ComputeBode(x, testRate, BodeOptions{Sweep: sweep})
	require.NoError(t, err)

	require.Len(t, res.GainDB, len(res.Freqs))
	testutil.AssertNoNaNOrInf(t, res.GainDB)
	testutil.AssertMonotonic(t, res.Freqs)
	assert.Greater(t, res.Freqs[0], sweep.Start)
	assert.Less(t, res.Freqs[len(res.Freqs)-1], sweep.End)

	mid := bandValues(res.Freqs, res.GainDB, 500, 8000)
	require.NotEmpty(t, mid)
	spread := floats.Max(mid) - floats.Min(mid)
	t.Logf("identity: peak %.2f dB at %.0f Hz, 500-8000 Hz spread %.2f dB", res.PeakDB, res.PeakFreq, spread)
	assert.Less(t, spread, 3.0)
	testutil.AssertInRange(t, floats.Sum(mid)/float64(len(mid)), -4, 0.5)

	// 2 ms before and 50 ms after the peak
	pre := int(DefaultPreWindowMS / 1000 * testRate)
	post := int(DefaultPostWindowMS / 1000 * testRate)
	require.Len(t, res.Impulse, pre+post)
	require.Len(t, res.ImpulseTimeMS, len(res.Impulse))
	assert.InDelta(t, 0.0, res.ImpulseTimeMS[pre], 1e-12, "time axis is zero at the linear peak")
	assert.InDelta(t, -DefaultPreWindowMS, res.ImpulseTimeMS[0], 1e-9)

	// the preview is the impulse response itself, without the analysis taper
	ir, err := ComputeImpulseResponse(x, sweep)
	require.NoError(t, err)
	assert.Equal(t, ir.Samples[ir.PeakIndex-pre:ir.PeakIndex+post], res.Impulse)
	assert.NotZero(t, res.Impulse[0], "edges are not tapered to zero")
}

func TestComputeBodeLowPassDUT(t *testing.T) {
	sweep := testSweep()
	x, err := sweep.Generate()
	require.NoError(t, err)

	taps, err := filter.DesignLowPassAuto(2000/testRate, 1000/testRate, 60)
	require.NoError(t, err)
	y := filter.Apply(taps, x)

	res, err := ComputeBode(y, testRate, BodeOptions{Sweep: sweep})
	require.NoError(t, err)

	pass := bandValues(res.Freqs, res.GainDB, 300, 1000)
	stop := bandValues(res.Freqs, res.GainDB, 6000, 10000)
	t.Logf("low-pass DUT: passband max %.2f dB, stopband max %.2f dB, peak at %.0f Hz",
		floats.Max(pass), floats.Max(stop), res.PeakFreq)

	testutil.AssertInRange(t, floats.Min(pass), -2, 0.1)
	assert.Less(t, floats.Max(stop), -30.0)
	assert.Less(t, res.PeakFreq, 2500.0)
}

func TestComputeBodeDegenerate(t *testing.T) {
	_, err := ComputeBode(nil, testRate, BodeOptions{})
	require.ErrorIs(t, err, ErrDegenerate)

	_, err = ComputeBode([]float64{1, 2, 3}, 0, BodeOptions{})
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestBodeOptionsDefaults(t *testing.T) {
	o := BodeOptions{}.withDefaults(97793.1)
	assert.InDelta(t, stimulus.DefaultSweepStart, o.Sweep.Start, 0)
	assert.InDelta(t, stimulus.DefaultSweepEnd, o.Sweep.End, 0)
	assert.InDelta(t, stimulus.DefaultSweepDuration, o.Sweep.Duration, 0)
	assert.InDelta(t, 97793.1, o.Sweep.Rate, 0)
	assert.Equal(t, DefaultBodeSmoothing, o.Smoothing)
	assert.InDelta(t, DefaultTukeyAlpha, o.TukeyAlpha, 0)
}
