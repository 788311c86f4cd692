package transfer

import (
	"fmt"

	"github.com/tphakala/go-scope/internal/dsp"
)

// Parity classifies a harmonic order.
type Parity int

// Harmonic parities.
const (
	Odd Parity = iota
	Even
)

func (p Parity) String() string {
	if p == Even {
		return "Even"
	}
	return "Odd"
}

// Harmonic is one row of a harmonic table.
type Harmonic struct {
	Label     string // "1f", "2f", ...
	Order     int
	Magnitude float64 // relative to the fundamental
	Parity    Parity
}

// ExtractHarmonics reports the peak magnitude within ±10 Hz of each multiple
// 1..n of fundamental, relative to the fundamental's own peak.
// Orders with no bins in their window report 0.
func ExtractHarmonics(x []float64, rate, fundamental float64, n int) ([]Harmonic, error) {
	spec := dsp.ComputeSpectrum(x, rate)

	fund, ok := windowPeak(spec, fundamental)
	if !ok {
		return nil, fmt.Errorf("%w: no bins within %g Hz of %g Hz", ErrFundamentalNotFound, harmonicWindowHz, fundamental)
	}
	if fund <= 0 {
		return nil, fmt.Errorf("%w: fundamental magnitude is zero", ErrDegenerate)
	}

	table := make([]Harmonic, 0, n)
	for order := 1; order <= n; order++ {
		mag, _ := windowPeak(spec, fundamental*float64(order))
		parity := Odd
		if order%2 == 0 {
			parity = Even
		}
		table = append(table, Harmonic{
			Label:     fmt.Sprintf("%df", order),
			Order:     order,
			Magnitude: mag / fund,
			Parity:    parity,
		})
	}
	return table, nil
}

func windowPeak(spec dsp.Spectrum, center float64) (float64, bool) {
	peak, found := 0.0, false
	for i, f := range spec.Freqs {
		if f > center-harmonicWindowHz && f < center+harmonicWindowHz {
			if !found || spec.Mags[i] > peak {
				peak = spec.Mags[i]
			}
			found = true
		}
	}
	return peak, found
}

// LabeledHarmonic tags a harmonic row with the signal it came from.
type LabeledHarmonic struct {
	Signal string
	Harmonic
}

// CompareSpectra builds side-by-side harmonic tables for a clean input and the device
// output, six orders each.
func CompareSpectra(clean, dirty []float64, rate, fundamental float64) ([]LabeledHarmonic, error) {
	c, err := ExtractHarmonics(clean, rate, fundamental, ComparisonHarmonics)
	if err != nil {
		return nil, fmt.Errorf("clean signal: %w", err)
	}
	d, err := ExtractHarmonics(dirty, rate, fundamental, ComparisonHarmonics)
	if err != nil {
		return nil, fmt.Errorf("device output: %w", err)
	}

	rows := make([]LabeledHarmonic, 0, len(c)+len(d))
	for _, h := range c {
		rows = append(rows, LabeledHarmonic{Signal: LabelClean, Harmonic: h})
	}
	for _, h := range d {
		rows = append(rows, LabeledHarmonic{Signal: LabelDUT, Harmonic: h})
	}
	return rows, nil
}
