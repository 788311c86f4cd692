package scope

import (
	"context"
	"fmt"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/daq"
	"github.com/tphakala/go-scope/internal/diagnostics"
	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/signal"
	"github.com/tphakala/go-scope/internal/stimulus"
	"github.com/tphakala/go-scope/internal/transfer"
)

type (
	// Config is the immutable toolkit configuration.
	Config = config.Config
	// Signal is a tagged raw or voltage capture.
	Signal = signal.Signal
	// Sweep describes an exponential sine sweep.
	Sweep = stimulus.Sweep
	// Spectrum is a one-sided magnitude spectrum.
	Spectrum = dsp.Spectrum
	// HealthReport summarizes clipping, level and bias of a capture.
	HealthReport = diagnostics.Report

	BodeOptions = transfer.BodeOptions
	BodeResult  = transfer.BodeResult
	H1Options   = transfer.H1Options
	H1Result    = transfer.H1Result

	// Value is a typed archive metadata scalar.
	Value = archive.Value
	// Metadata describes an archived capture.
	Metadata = archive.Metadata

	// Port is the byte transport to the device.
	Port = daq.Port
	// Opener opens a Port; nil selects the serial port from Config.
	Opener = daq.Opener
)

// DefaultConfig returns the configuration of the stock firmware.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a YAML configuration over the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// DefaultBodeOptions returns the 20 Hz to 20 kHz, 5 s measurement setup.
func DefaultBodeOptions() BodeOptions { return transfer.DefaultBodeOptions() }

// NewRaw wraps ADC counts captured at rate.
func NewRaw(samples []uint16, rate float64) (Signal, error) { return signal.NewRaw(samples, rate) }

// NewVoltage wraps volts captured at rate.
func NewVoltage(samples []float64, rate float64) (Signal, error) {
	return signal.NewVoltage(samples, rate)
}

// CaptureBurst connects, captures one burst of cfg.Acquisition.BurstSamples and
// disconnects. The result is raw counts at the configured rate.
func CaptureBurst(ctx context.Context, cfg Config, open Opener) (Signal, error) {
	var raw []uint16
	err := daq.WithSession(ctx, cfg.Serial, open, func(s *daq.Session) error {
		var err error
		raw, err = s.CaptureBurst(cfg.Acquisition.BurstSamples)
		return err
	})
	if err != nil {
		return Signal{}, err
	}
	return signal.NewRaw(raw, cfg.Acquisition.SampleRate)
}

// CaptureStream connects and concatenates the given number of stream chunks.
func CaptureStream(ctx context.Context, cfg Config, open Opener, chunks int) (Signal, error) {
	if chunks <= 0 {
		return Signal{}, fmt.Errorf("capture of %d chunks", chunks)
	}
	frames := make([][]uint16, 0, chunks)
	err := daq.WithSession(ctx, cfg.Serial, open, func(s *daq.Session) error {
		st, err := s.Stream(cfg.Acquisition.LiveSamples)
		if err != nil {
			return err
		}
		defer st.Close()
		for range chunks {
			chunk, err := st.Next(ctx)
			if err != nil {
				return err
			}
			frames = append(frames, chunk)
		}
		return nil
	})
	if err != nil {
		return Signal{}, err
	}
	return signal.Concat(frames, cfg.Acquisition.SampleRate)
}

// Volts returns the capture in volts, converting raw counts with cfg.ADC.
func Volts(sig Signal, cfg Config) ([]float64, error) {
	return sig.ToVoltage(cfg.ADC).Voltages()
}

// ComputeSpectrum returns the Hann-windowed magnitude spectrum of the
// DC-removed signal.
func ComputeSpectrum(volts []float64, rate float64) Spectrum {
	return transfer.SpectrumData(volts, rate)
}

// THD returns the selective total harmonic distortion in percent over the
// default number of harmonics. A fundamental of 0 selects the strongest
// spectral peak between 20 Hz and 20 kHz.
func THD(volts []float64, rate, fundamental float64) (thd, fund float64) {
	ac := dsp.RemoveDC(volts)
	if fundamental <= 0 {
		spec := dsp.ComputeSpectrum(ac, rate)
		fundamental = dsp.EstimateFundamental(spec.Freqs, spec.Mags, thdFundamentalMin, thdFundamentalMax)
	}
	return dsp.SelectiveTHD(ac, rate, fundamental, defaultHarmonics), fundamental
}

// Bode measures the frequency response from a captured sweep response.
func Bode(response []float64, rate float64, opts BodeOptions) (BodeResult, error) {
	return transfer.ComputeBode(dsp.RemoveDC(response), rate, opts)
}

// H1 estimates the transfer function between src and dut.
func H1(src, dut []float64, rate float64, opts H1Options) (H1Result, error) {
	return transfer.ComputeH1(dsp.RemoveDC(src), dsp.RemoveDC(dut), rate, opts)
}

// CheckHealth flags clipping, a weak level and bias drift.
func CheckHealth(volts []float64, cfg Config) HealthReport {
	return diagnostics.CheckSignalHealth(volts, cfg.ADC)
}

// Metadata constructors.
var (
	FloatValue  = archive.FloatValue
	StringValue = archive.StringValue
	BoolValue   = archive.BoolValue
)

// Save archives sig in dir as prefix_YYYYMMDD_HHMMSS.parquet and returns the path.
func Save(dir, prefix string, sig Signal, extra map[string]Value) (string, error) {
	return archive.Save(dir, prefix, sig, extra)
}

// Load reads an archive written by Save.
func Load(path string) (Signal, Metadata, error) {
	rec, err := archive.Load(path)
	if err != nil {
		return Signal{}, Metadata{}, err
	}
	return rec.Signal, rec.Meta, nil
}
