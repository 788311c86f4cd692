package diagnostics

import (
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/testutil"
)

func TestCalibrateRecoversRate(t *testing.T) {
	const n = 16384
	for _, trueRate := range []float64{config.DefaultSampleRate, 96000, 100500} {
		volts := make([]float64, n)
		for i := range volts {
			volts[i] = 1.65 + 0.3*math.Sin(2*math.Pi*DefaultMainsHz*float64(i)/trueRate)
		}

		res, err := Calibrate(volts, DefaultMainsHz)
		require.NoError(t, err)
		t.Logf("true %.1f Hz, measured %.1f Hz (bin %.3f, SNR %.0f)", trueRate, res.Rate, res.PeakBin, res.SNR)
		testutil.AssertRelativeError(t, trueRate, res.Rate, 0.01)
		assert.Equal(t, n, res.Captured)
	}
}

func TestCalibrateRejectsNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 2))
	volts := make([]float64, 16384)
	for i := range volts {
		volts[i] = 1.65 + 0.01*rng.NormFloat64()
	}

	_, err := Calibrate(volts, DefaultMainsHz)
	require.ErrorIs(t, err, ErrWeakCalibration)

	_, err = Calibrate([]float64{1, 2, 3}, DefaultMainsHz)
	require.ErrorIs(t, err, ErrWeakCalibration)
}

func TestCalibrationFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calibration.json")

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	c := NewCalibration(97801.4, config.DefaultSampleRate, now)
	assert.Equal(t, "2026-03-14 15:09:26", c.DateStr)

	require.NoError(t, SaveCalibration(path, c))

	got, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fs": 97801.4`)
	assert.Contains(t, string(raw), `"hardware_default"`)
}

func TestLoadCalibrationErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCalibration(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, ErrNoCalibration)
	require.ErrorIs(t, err, fs.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = LoadCalibration(bad)
	require.Error(t, err)

	zero := filepath.Join(dir, "zero.json")
	require.NoError(t, os.WriteFile(zero, []byte(`{"fs": 0}`), 0o600))
	_, err = LoadCalibration(zero)
	require.Error(t, err)
}
