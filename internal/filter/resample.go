package filter

import (
	"fmt"
	"math"

	"github.com/tphakala/go-scope/internal/mathutil"
)

// Resampler converts a signal between arbitrary sample rates by evaluating a
// Kaiser-windowed sinc kernel at every output instant.
//
// The kernel cutoff tracks the lower of the two rates so downsampling is band limited.
type Resampler struct {
	from, to float64
	cutoff   float64 // cycles per input sample
	halfLen  int     // one-sided kernel span in input samples
	beta     float64
	i0Beta   float64
}

// NewResampler prepares a converter from rate from to rate to (Hz).
func NewResampler(from, to float64) (*Resampler, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: rates %g -> %g", ErrInvalidDesign, from, to)
	}
	ratio := to / from
	cutoff := resamplePassbandEdge * min(1, ratio)
	halfLen := int(math.Ceil(resampleHalfTaps / min(1, ratio)))
	beta := mathutil.KaiserBeta(resampleAttenuation)

	return &Resampler{
		from:    from,
		to:      to,
		cutoff:  cutoff,
		halfLen: halfLen,
		beta:    beta,
		i0Beta:  mathutil.BesselI0(beta),
	}, nil
}

// OutputLength is the number of samples produced for an n-sample input.
func (r *Resampler) OutputLength(n int) int {
	return int(math.Round(float64(n) * r.to / r.from))
}

// Process resamples x.
func (r *Resampler) Process(x []float64) []float64 {
	if r.from == r.to {
		return append([]float64(nil), x...)
	}

	out := make([]float64, r.OutputLength(len(x)))
	step := r.from / r.to
	span := float64(r.halfLen)

	for i := range out {
		pos := float64(i) * step
		center := int(math.Floor(pos))
		lo := max(0, center-r.halfLen+1)
		hi := min(len(x)-1, center+r.halfLen)

		var acc float64
		for k := lo; k <= hi; k++ {
			d := pos - float64(k)
			if math.Abs(d) >= span {
				continue
			}
			u := d / span
			w := mathutil.BesselI0(r.beta*math.Sqrt(1-u*u)) / r.i0Beta
			acc += x[k] * sinc(r.cutoff, d) * w
		}
		out[i] = acc
	}
	return out
}

// Resample is a convenience wrapper around NewResampler and Process.
func Resample(x []float64, from, to float64) ([]float64, error) {
	r, err := NewResampler(from, to)
	if err != nil {
		return nil, err
	}
	return r.Process(x), nil
}
