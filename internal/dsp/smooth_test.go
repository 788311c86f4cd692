package dsp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestMovingAverageSame(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		w    int
		want []float64
	}{
		{"centered", []float64{1, 2, 3, 4, 5}, 3, []float64{1, 2, 3, 4, 3}},
		{"even width", []float64{4, 4, 4, 4}, 2, []float64{2, 4, 4, 4}},
		{"window longer than input", []float64{1, 2}, 4, []float64{0.25, 0.75, 0.75, 0.75}},
		{"identity", []float64{1, 5, 2}, 1, []float64{1, 5, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MovingAverageSame(tt.x, tt.w)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12, "index %d", i)
			}
		})
	}
}

func TestFindPeaks(t *testing.T) {
	x := []float64{0, 1, 0, 2, 0, 3, 0}

	assert.Equal(t, []int{1, 3, 5}, FindPeaks(x, 0, 1))
	assert.Equal(t, []int{3, 5}, FindPeaks(x, 1.5, 1), "height filter")
	assert.Equal(t, []int{1, 5}, FindPeaks(x, 0, 3), "distance keeps the tallest")

	plateau := []float64{0, 2, 2, 2, 0}
	assert.Equal(t, []int{2}, FindPeaks(plateau, 0, 1))

	// edges never count as peaks
	assert.Empty(t, FindPeaks([]float64{5, 1, 0}, 0, 1))
	assert.Empty(t, FindPeaks(nil, 0, 1))

	assert.Equal(t, []int{5, 3, 1}, SortByHeight(x, []int{1, 3, 5}))
}

func TestWelchParseval(t *testing.T) {
	// 3 kHz sits exactly on bin 256 of a 4096-point segment at 48 kHz
	const rate = 48000.0
	x := sine(48000, rate, 3000, 1.0)

	freqs, pxx := Welch(x, rate, DefaultSegmentLength)
	require.Len(t, freqs, DefaultSegmentLength/2+1)
	require.Len(t, pxx, len(freqs))

	df := freqs[1] - freqs[0]
	power := floats.Sum(pxx) * df
	assert.InDelta(t, 0.5, power, 0.02, "integrated PSD must equal signal power")
	assert.InDelta(t, 3000.0, freqs[floats.MaxIdx(pxx)], df)
}

func TestCrossSpectrumOfScaledCopy(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	x := make([]float64, 20000)
	y := make([]float64, len(x))
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = 2 * x[i]
	}

	cs := EstimateCrossSpectrum(x, y, 48000, 1024)
	h := cs.TransferH1()
	coh := cs.Coherence()
	for k := 1; k < len(h)-1; k++ {
		assert.InDelta(t, 2.0, real(h[k]), 1e-9, "bin %d", k)
		assert.InDelta(t, 0.0, imag(h[k]), 1e-9, "bin %d", k)
		assert.InDelta(t, 1.0, coh[k], 1e-9, "bin %d", k)
	}
}

func TestCrossSpectrumShortInput(t *testing.T) {
	// segment clamps to the input length
	x := sine(1000, 8000, 500, 1)
	cs := EstimateCrossSpectrum(x, x, 8000, 4096)
	assert.Len(t, cs.Freqs, 501)
	for _, v := range cs.Pxx {
		assert.False(t, math.IsNaN(v))
	}
	assert.Empty(t, EstimateCrossSpectrum(nil, x, 8000, 16).Freqs)
}
