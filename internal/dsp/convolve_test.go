package dsp

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func naiveConvolve(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

func noise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}
	return x
}

func TestConvolveFullMatchesDirect(t *testing.T) {
	tests := []struct {
		name      string
		signalLen int
		kernelLen int
	}{
		{"short kernel direct path", 300, 7},
		{"single tap", 50, 1},
		{"fft path one block", 400, 100},
		{"fft path many blocks", 5000, 300},
		{"kernel longer than signal", 80, 700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := noise(tt.signalLen, 1)
			b := noise(tt.kernelLen, 2)

			got := ConvolveFull(a, b)
			want := naiveConvolve(a, b)
			require.Len(t, got, len(want))
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
			}
		})
	}
}

func TestConvolverReuse(t *testing.T) {
	kernel := noise(128, 3)
	c := NewConvolver(kernel)
	require.NotNil(t, c)

	first := c.Full(noise(1000, 4))
	second := c.Full(noise(1000, 4))
	assert.Equal(t, first, second, "buffers must not leak state between calls")

	assert.Nil(t, NewConvolver(nil))
	assert.Nil(t, ConvolveFull(nil, kernel))
}

func TestCorrelationLagAndSmartAlign(t *testing.T) {
	ref := noise(1000, 5)

	for _, delay := range []int{0, 5, -17, 120} {
		target := Roll(ref, delay)
		assert.Equal(t, delay, CorrelationLag(ref, target), "delay %d", delay)

		aligned := SmartAlign(ref, target)
		assert.Equal(t, ref, aligned, "delay %d", delay)
	}
}

func TestCorrelateLagConvention(t *testing.T) {
	// impulse at index 3 correlated against impulse at index 0: lag +3
	a := []float64{0, 0, 0, 1, 0}
	b := []float64{1, 0}
	corr := Correlate(a, b)
	require.Len(t, corr, len(a)+len(b)-1)
	best := 0
	for i, v := range corr {
		if v > corr[best] {
			best = i
		}
	}
	assert.Equal(t, 3, best-(len(b)-1))
}
