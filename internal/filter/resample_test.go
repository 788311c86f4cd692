package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(n int, rate, freq float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return x
}

func rms(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(len(x)))
}

func TestResampleUpTracksTone(t *testing.T) {
	const (
		from = 48000.0
		to   = 97793.1
		freq = 1000.0
		edge = 300 // skip kernel start-up at both ends
	)
	out, err := Resample(tone(4800, from, freq), from, to)
	require.NoError(t, err)
	require.Len(t, out, int(math.Round(4800*to/from)))

	for i := edge; i < len(out)-edge; i++ {
		want := math.Sin(2 * math.Pi * freq * float64(i) / to)
		require.InDelta(t, want, out[i], 1e-3, "sample %d", i)
	}
}

func TestResampleDownRejectsAboveNyquist(t *testing.T) {
	const (
		from = 96000.0
		to   = 48000.0
	)
	r, err := NewResampler(from, to)
	require.NoError(t, err)

	pass := r.Process(tone(9600, from, 1000))
	stop := r.Process(tone(9600, from, 30000))
	require.Len(t, pass, 4800)

	mid := func(x []float64) []float64 { return x[200 : len(x)-200] }
	t.Logf("passband rms %.4f, stopband rms %.6f", rms(mid(pass)), rms(mid(stop)))
	assert.InDelta(t, 1/math.Sqrt2, rms(mid(pass)), 1e-3)
	assert.Less(t, rms(mid(stop)), 0.01)
}

func TestResampleIdentityAndErrors(t *testing.T) {
	x := []float64{1, 2, 3}
	out, err := Resample(x, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, x, out)
	out[0] = 9
	assert.InDelta(t, 1.0, x[0], 0, "identity must copy")

	_, err = Resample(x, 0, 1000)
	require.ErrorIs(t, err, ErrInvalidDesign)
	_, err = NewResampler(1000, -1)
	require.ErrorIs(t, err, ErrInvalidDesign)
}
