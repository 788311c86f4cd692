// Package config holds the immutable hardware and acquisition configuration.
//
// A Config is built once at startup, either from Default or from a YAML file via
// Load, validated, and then passed by value to the components that need it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default hardware and acquisition parameters for the RP2040 front end.
const (
	DefaultSerialPort  = "/dev/tty.usbmodem101"
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 3 * time.Second
	DefaultSettleDelay = 2 * time.Second

	DefaultADCBits = 16
	DefaultADCMax  = 65535
	DefaultVRef    = 3.3
	DefaultVMid    = 1.65 // virtual ground / bias

	DefaultSampleRate   = 97793.1
	DefaultBurstSamples = 16384
	DefaultLiveSamples  = 1024

	// LegacySampleRate is assumed for archives written without a rate.
	LegacySampleRate = 97812.0

	DefaultDataDir         = "data"
	calibrationFileName    = "calibration.json"
	continuousSubdir       = "continuous"
	burstSubdir            = "burst"
	catalogFileName        = "catalog.db"
	maxReasonableADCBits   = 32
	maxReasonableChunkSize = 1 << 20
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Serial describes the USB serial link to the capture device.
type Serial struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// ADC describes the converter scaling.
type ADC struct {
	Bits     int     `yaml:"bits"`
	MaxValue int     `yaml:"max_value"`
	VRef     float64 `yaml:"vref"`
	VMid     float64 `yaml:"vmid"`
}

// Volts scales one ADC count to volts.
func (a ADC) Volts(count uint16) float64 {
	return float64(count) / float64(a.MaxValue) * a.VRef
}

// Acquisition holds the sampling parameters shared by burst and stream capture.
type Acquisition struct {
	SampleRate   float64 `yaml:"sample_rate"`
	BurstSamples int     `yaml:"burst_samples"`
	LiveSamples  int     `yaml:"live_samples"`
}

// Paths locates persisted captures.
type Paths struct {
	DataDir string `yaml:"data_dir"`
}

// Config is the complete toolkit configuration.
type Config struct {
	Serial      Serial      `yaml:"serial"`
	ADC         ADC         `yaml:"adc"`
	Acquisition Acquisition `yaml:"acquisition"`
	Paths       Paths       `yaml:"paths"`
}

// Default returns the configuration matching the stock firmware.
func Default() Config {
	return Config{
		Serial: Serial{
			Port:        DefaultSerialPort,
			BaudRate:    DefaultBaudRate,
			ReadTimeout: DefaultReadTimeout,
			SettleDelay: DefaultSettleDelay,
		},
		ADC: ADC{
			Bits:     DefaultADCBits,
			MaxValue: DefaultADCMax,
			VRef:     DefaultVRef,
			VMid:     DefaultVMid,
		},
		Acquisition: Acquisition{
			SampleRate:   DefaultSampleRate,
			BurstSamples: DefaultBurstSamples,
			LiveSamples:  DefaultLiveSamples,
		},
		Paths: Paths{DataDir: DefaultDataDir},
	}
}

// Load reads a YAML file on top of Default and validates the result.
// Fields absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field for a usable value.
func (c Config) Validate() error {
	switch {
	case c.Serial.Port == "":
		return fmt.Errorf("%w: serial.port is empty", ErrInvalid)
	case c.Serial.BaudRate <= 0:
		return fmt.Errorf("%w: serial.baud_rate %d", ErrInvalid, c.Serial.BaudRate)
	case c.Serial.ReadTimeout <= 0:
		return fmt.Errorf("%w: serial.read_timeout %v", ErrInvalid, c.Serial.ReadTimeout)
	case c.Serial.SettleDelay < 0:
		return fmt.Errorf("%w: serial.settle_delay %v", ErrInvalid, c.Serial.SettleDelay)
	case c.ADC.Bits <= 0 || c.ADC.Bits > maxReasonableADCBits:
		return fmt.Errorf("%w: adc.bits %d", ErrInvalid, c.ADC.Bits)
	case c.ADC.MaxValue <= 0:
		return fmt.Errorf("%w: adc.max_value %d", ErrInvalid, c.ADC.MaxValue)
	case c.ADC.VRef <= 0:
		return fmt.Errorf("%w: adc.vref %g", ErrInvalid, c.ADC.VRef)
	case c.ADC.VMid <= 0 || c.ADC.VMid >= c.ADC.VRef:
		return fmt.Errorf("%w: adc.vmid %g must lie inside (0, vref)", ErrInvalid, c.ADC.VMid)
	case c.Acquisition.SampleRate <= 0:
		return fmt.Errorf("%w: acquisition.sample_rate %g", ErrInvalid, c.Acquisition.SampleRate)
	case c.Acquisition.BurstSamples <= 0 || c.Acquisition.BurstSamples > maxReasonableChunkSize:
		return fmt.Errorf("%w: acquisition.burst_samples %d", ErrInvalid, c.Acquisition.BurstSamples)
	case c.Acquisition.LiveSamples <= 0 || c.Acquisition.LiveSamples > maxReasonableChunkSize:
		return fmt.Errorf("%w: acquisition.live_samples %d", ErrInvalid, c.Acquisition.LiveSamples)
	}
	return nil
}

// CalibrationFile is where the mains calibration result is stored.
func (p Paths) CalibrationFile() string {
	return filepath.Join(p.DataDir, calibrationFileName)
}

// ContinuousDir holds streamed captures.
func (p Paths) ContinuousDir() string {
	return filepath.Join(p.DataDir, continuousSubdir)
}

// BurstDir holds burst captures.
func (p Paths) BurstDir() string {
	return filepath.Join(p.DataDir, burstSubdir)
}

// CatalogFile is the sqlite index of the data directory.
func (p Paths) CatalogFile() string {
	return filepath.Join(p.DataDir, catalogFileName)
}
