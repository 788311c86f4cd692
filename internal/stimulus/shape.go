package stimulus

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Shape selects a periodic test waveform.
type Shape int

// Supported shapes.
const (
	Sine Shape = iota
	Square
	Saw
	Triangle
	Noise
)

var shapeNames = [...]string{
	Sine:     "sine",
	Square:   "square",
	Saw:      "saw",
	Triangle: "triangle",
	Noise:    "noise",
}

// String returns the shape tag.
func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape maps a tag such as "triangle" to its Shape.
func ParseShape(tag string) (Shape, error) {
	for i, name := range shapeNames {
		if strings.EqualFold(tag, name) {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, tag)
}

// GenerateBlock renders amp·shape(freq·t) at the given sample times.
//
// The generator keeps no state; callers advance t to stay phase continuous across blocks.
// rng is only used for Noise and may be nil otherwise.
func GenerateBlock(shape Shape, t []float64, freq, amp float64, rng *rand.Rand) ([]float64, error) {
	out := make([]float64, len(t))
	switch shape {
	case Sine:
		for i, ti := range t {
			out[i] = math.Sin(2 * math.Pi * freq * ti)
		}
	case Square:
		for i, ti := range t {
			out[i] = sign(math.Sin(2 * math.Pi * freq * ti))
		}
	case Saw:
		for i, ti := range t {
			tf := ti * freq
			out[i] = 2 * (tf - math.Floor(0.5+tf))
		}
	case Triangle:
		for i, ti := range t {
			tf := ti * freq
			out[i] = 2*math.Abs(2*(tf-math.Floor(tf+0.5))) - 1
		}
	case Noise:
		if rng == nil {
			return nil, fmt.Errorf("%w: noise needs a random source", ErrInvalidParameter)
		}
		for i := range out {
			out[i] = rng.Float64()*2 - 1
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, shape)
	}

	for i := range out {
		out[i] *= amp
	}
	return out, nil
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
