// Package signal defines the tagged sample container shared by capture, analysis and storage.
package signal

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-scope/internal/config"
)

// Kind tags the representation held by a Signal.
type Kind int

const (
	// KindRaw holds unsigned ADC counts.
	KindRaw Kind = iota
	// KindVoltage holds volts.
	KindVoltage
)

// String returns the archive tag for k.
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindVoltage:
		return "voltage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "raw":
		return KindRaw, nil
	case "voltage":
		return KindVoltage, nil
	}
	return 0, fmt.Errorf("unknown signal kind %q", s)
}

var (
	// ErrEmpty is returned when constructing a signal with no samples.
	ErrEmpty = errors.New("signal has no samples")
	// ErrInvalidRate is returned for a non-positive sample rate.
	ErrInvalidRate = errors.New("sample rate must be positive")
	// ErrNotVoltage is returned when volts are requested from a raw signal.
	ErrNotVoltage = errors.New("signal holds raw ADC counts, convert with ToVoltage first")
	// ErrNotRaw is returned when counts are requested from a voltage signal.
	ErrNotRaw = errors.New("signal holds voltages, not raw ADC counts")
)

// Signal is an immutable sample sequence paired with its sample rate.
// Exactly one of raw or volts is populated, selected by kind.
type Signal struct {
	kind  Kind
	raw   []uint16
	volts []float64
	rate  float64
}

// NewRaw copies samples into a raw signal.
func NewRaw(samples []uint16, rate float64) (Signal, error) {
	if err := check(len(samples), rate); err != nil {
		return Signal{}, err
	}
	return Signal{kind: KindRaw, raw: append([]uint16(nil), samples...), rate: rate}, nil
}

// NewVoltage copies samples into a voltage signal.
func NewVoltage(samples []float64, rate float64) (Signal, error) {
	if err := check(len(samples), rate); err != nil {
		return Signal{}, err
	}
	return Signal{kind: KindVoltage, volts: append([]float64(nil), samples...), rate: rate}, nil
}

func check(n int, rate float64) error {
	if n == 0 {
		return ErrEmpty
	}
	if !(rate > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidRate, rate)
	}
	return nil
}

// Kind reports the representation.
func (s Signal) Kind() Kind { return s.kind }

// Rate is the sample rate in Hz.
func (s Signal) Rate() float64 { return s.rate }

// Len is the number of samples.
func (s Signal) Len() int {
	if s.kind == KindRaw {
		return len(s.raw)
	}
	return len(s.volts)
}

// Duration is the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.rate == 0 {
		return 0
	}
	return float64(s.Len()) / s.rate
}

// Raw returns a copy of the ADC counts.
func (s Signal) Raw() ([]uint16, error) {
	if s.kind != KindRaw {
		return nil, ErrNotRaw
	}
	return append([]uint16(nil), s.raw...), nil
}

// Voltages returns a copy of the voltage samples.
func (s Signal) Voltages() ([]float64, error) {
	if s.kind != KindVoltage {
		return nil, ErrNotVoltage
	}
	return append([]float64(nil), s.volts...), nil
}

// ToVoltage scales raw counts to volts using adc. A voltage signal is returned unchanged.
func (s Signal) ToVoltage(adc config.ADC) Signal {
	if s.kind == KindVoltage {
		return s
	}
	volts := make([]float64, len(s.raw))
	for i, v := range s.raw {
		volts[i] = adc.Volts(v)
	}
	return Signal{kind: KindVoltage, volts: volts, rate: s.rate}
}

// Float64s returns the samples as float64 regardless of kind: counts stay counts.
// Storage uses it; analysis should go through ToVoltage.
func (s Signal) Float64s() []float64 {
	if s.kind == KindVoltage {
		return append([]float64(nil), s.volts...)
	}
	out := make([]float64, len(s.raw))
	for i, v := range s.raw {
		out[i] = float64(v)
	}
	return out
}

// Concat joins raw chunks captured at the same rate into one raw signal.
func Concat(chunks [][]uint16, rate float64) (Signal, error) {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	joined := make([]uint16, 0, total)
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	if err := check(len(joined), rate); err != nil {
		return Signal{}, err
	}
	return Signal{kind: KindRaw, raw: joined, rate: rate}, nil
}
