package stimulus

import (
	"fmt"
	"math/rand/v2"
)

// Oscillator renders consecutive, phase-continuous blocks of one waveform.
type Oscillator struct {
	shape Shape
	freq  float64
	amp   float64
	rate  float64
	index int64
	rng   *rand.Rand
	t     []float64
}

// NewOscillator creates an oscillator. seed fixes the noise sequence.
func NewOscillator(shape Shape, freq, amp, rate float64, seed uint64) (*Oscillator, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: rate %g Hz", ErrInvalidParameter, rate)
	}
	if shape < Sine || shape > Noise {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, shape)
	}
	return &Oscillator{
		shape: shape,
		freq:  freq,
		amp:   amp,
		rate:  rate,
		rng:   rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
	}, nil
}

// Next renders the next n samples and advances the sample index.
func (o *Oscillator) Next(n int) []float64 {
	if cap(o.t) < n {
		o.t = make([]float64, n)
	}
	t := o.t[:n]
	for i := range t {
		t[i] = float64(o.index+int64(i)) / o.rate
	}
	o.index += int64(n)

	// shape was validated in NewOscillator
	out, _ := GenerateBlock(o.shape, t, o.freq, o.amp, o.rng)
	return out
}

// Index is the number of samples rendered so far.
func (o *Oscillator) Index() int64 { return o.index }

// Reset rewinds the oscillator to sample 0.
func (o *Oscillator) Reset() { o.index = 0 }

// Shape returns the waveform.
func (o *Oscillator) Shape() Shape { return o.shape }

// Frequency returns the tone frequency in Hz.
func (o *Oscillator) Frequency() float64 { return o.freq }

// Rate returns the sample rate in Hz.
func (o *Oscillator) Rate() float64 { return o.rate }
