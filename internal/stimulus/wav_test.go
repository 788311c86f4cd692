package stimulus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.wav")

	s := Sweep{Start: 20, End: 20000, Duration: 0.2, Rate: 48000, Amplitude: 0.9}
	x, err := s.Generate()
	require.NoError(t, err)

	require.NoError(t, WriteWAV(path, x, 48000))

	got, rate, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, rate)
	require.Len(t, got, len(x))
	for i := range x {
		require.InDelta(t, x[i], got[i], 1.0/32767, "sample %d", i)
	}
}

func TestWAVClipsAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")

	require.NoError(t, WriteWAV(path, []float64{2, -2, 0.5}, 8000))
	got, _, err := ReadWAV(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0], 1e-12)
	assert.InDelta(t, -1.0, got[1], 1e-12)

	require.ErrorIs(t, WriteWAV(path, nil, 0), ErrInvalidParameter)

	_, _, err = ReadWAV(filepath.Join(dir, "missing.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("not a wav file at all"), 0o600))
	_, _, err = ReadWAV(junk)
	require.Error(t, err)
}
