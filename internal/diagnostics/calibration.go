package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/cmplx"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-scope/internal/dsp"
)

// Calibration errors.
var (
	ErrWeakCalibration = errors.New("calibration tone too weak")
	ErrNoCalibration   = fmt.Errorf("no saved calibration: %w", fs.ErrNotExist)
)

const (
	// DefaultMainsHz is the hum frequency picked up by touching the input jack.
	DefaultMainsHz = 60.0

	calibrationMinSNR       = 10.0
	calibrationNoiseGuard   = 5 // bins excluded on each side of the peak
	calibrationCentroidHalf = 2

	calibrationDateLayout = "2006-01-02 15:04:05"
)

// Calibration is the persisted result of a mains calibration.
type Calibration struct {
	Rate            float64 `json:"fs"`
	Timestamp       float64 `json:"timestamp"` // Unix seconds
	DateStr         string  `json:"date_str"`
	HardwareDefault float64 `json:"hardware_default"`
}

// CalibrationResult describes a measurement by Calibrate.
type CalibrationResult struct {
	Rate     float64 // Hz
	SNR      float64
	PeakBin  float64 // centroid, fractional bin
	Captured int
}

// Calibrate derives the true sample rate from a capture of a known mains tone.
//
// The tone's bin position is refined with a five-bin magnitude centroid and
// converted with rate = mainsHz·N/bin. A peak less than ten times the mean
// magnitude of the other bins fails with ErrWeakCalibration.
func Calibrate(volts []float64, mainsHz float64) (CalibrationResult, error) {
	n := len(volts)
	if n < 2*calibrationNoiseGuard+2 {
		return CalibrationResult{}, fmt.Errorf("%w: only %d samples", ErrWeakCalibration, n)
	}

	ac := dsp.RemoveDC(volts)
	for i, w := range dsp.HannWindow(n) {
		ac[i] *= w
	}
	coeffs := fourier.NewFFT(n).Coefficients(nil, ac)
	mags := make([]float64, n/2)
	for k := range mags {
		mags[k] = cmplx.Abs(coeffs[k])
	}

	peak := 0
	for k, m := range mags {
		if m > mags[peak] {
			peak = k
		}
	}

	var noiseSum float64
	var noiseCount int
	for k, m := range mags {
		if k >= peak-calibrationNoiseGuard && k < peak+calibrationNoiseGuard {
			continue
		}
		noiseSum += m
		noiseCount++
	}
	snr := 0.0
	if noiseCount > 0 && noiseSum > 0 {
		snr = mags[peak] / (noiseSum / float64(noiseCount))
	}
	glog.Infof("calibration: signal strength %.1fx noise floor", snr)
	if snr < calibrationMinSNR {
		return CalibrationResult{SNR: snr, Captured: n}, fmt.Errorf("%w: SNR %.1f", ErrWeakCalibration, snr)
	}

	var weighted, total float64
	for k := max(0, peak-calibrationCentroidHalf); k <= min(len(mags)-1, peak+calibrationCentroidHalf); k++ {
		weighted += float64(k) * mags[k]
		total += mags[k]
	}
	centroid := weighted / total
	if centroid <= 0 {
		return CalibrationResult{SNR: snr, Captured: n}, fmt.Errorf("%w: tone at DC", ErrWeakCalibration)
	}

	rate := mainsHz * float64(n) / centroid
	glog.Infof("calibration: peak bin %.3f, sample rate %.1f Hz", centroid, rate)
	return CalibrationResult{Rate: rate, SNR: snr, PeakBin: centroid, Captured: n}, nil
}

// NewCalibration stamps a measured rate with the current time.
func NewCalibration(rate, hardwareDefault float64, now time.Time) Calibration {
	return Calibration{
		Rate:            rate,
		Timestamp:       float64(now.UnixNano()) / float64(time.Second),
		DateStr:         now.Format(calibrationDateLayout),
		HardwareDefault: hardwareDefault,
	}
}

// SaveCalibration writes c as indented JSON, creating the parent directory.
func SaveCalibration(path string, c Calibration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create calibration directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write calibration: %w", err)
	}
	glog.Infof("calibration saved to %s", path)
	return nil
}

// LoadCalibration reads a calibration file. A missing file returns ErrNoCalibration.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Calibration{}, fmt.Errorf("%w: %s", ErrNoCalibration, path)
	}
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to read calibration: %w", err)
	}

	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return Calibration{}, fmt.Errorf("failed to decode calibration %s: %w", path, err)
	}
	if c.Rate <= 0 {
		return Calibration{}, fmt.Errorf("calibration %s has invalid rate %g", path, c.Rate)
	}
	glog.V(1).Infof("loaded cached calibration: %.1f Hz (%s)", c.Rate, c.DateStr)
	return c, nil
}
