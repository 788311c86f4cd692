package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/filter"
	"github.com/tphakala/go-scope/internal/testutil"
)

func TestComputeH1DelayedAttenuator(t *testing.T) {
	src := whiteNoise(60000, 3)
	dut := delayed(src, 37, 0.5)

	res, err := ComputeH1(src, dut, testRate, H1Options{})
	require.NoError(t, err)

	require.Len(t, res.Freqs, DefaultH1Segment/2+1)
	require.Len(t, res.GainDB, len(res.Freqs))
	require.Len(t, res.Coherence, len(res.Freqs))

	// skip the bins where the smoothing box overhangs the ends
	edge := DefaultH1Smoothing/2 + 1
	for k := edge; k < len(res.GainDB)-edge; k++ {
		require.InDelta(t, -6.0206, res.GainDB[k], 1e-3, "bin %d", k)
		require.InDelta(t, 1.0, res.Coherence[k], 1e-6, "bin %d", k)
	}
	assert.InDelta(t, -6.0206, res.PeakDB, 1e-3)
	testutil.AssertInRange(t, res.PeakFreq, DefaultBandLow, DefaultBandHigh)
}

func TestComputeH1ResamplesSource(t *testing.T) {
	src := whiteNoise(30000, 5)
	up, err := filter.Resample(src, 48000, 96000)
	require.NoError(t, err)
	dut := make([]float64, len(up))
	for i, v := range up {
		dut[i] = 2 * v
	}

	res, err := ComputeH1(src, dut, 96000, H1Options{SourceRate: 48000})
	require.NoError(t, err)
	t.Logf("resampled H1 peak %.3f dB at %.0f Hz", res.PeakDB, res.PeakFreq)
	assert.InDelta(t, 6.0206, res.PeakDB, 1e-3)
}

func TestComputeH1Degenerate(t *testing.T) {
	src := whiteNoise(1000, 1)

	_, err := ComputeH1(make([]float64, 1000), src, testRate, H1Options{})
	require.ErrorIs(t, err, ErrDegenerate)
	_, err = ComputeH1(src, make([]float64, 1000), testRate, H1Options{})
	require.ErrorIs(t, err, ErrDegenerate)
	_, err = ComputeH1(src, src, 0, H1Options{})
	require.ErrorIs(t, err, ErrDegenerate)

	// band above Nyquist holds no bins
	_, err = ComputeH1(src, src, testRate, H1Options{BandLow: 30000, BandHigh: 40000})
	require.ErrorIs(t, err, ErrDegenerate)
}
