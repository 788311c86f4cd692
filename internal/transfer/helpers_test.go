package transfer

import (
	"math"
	"math/rand/v2"
)

func sine(n int, rate, freq, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func whiteNoise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

func delayed(x []float64, delay int, gain float64) []float64 {
	out := make([]float64, len(x))
	for i := delay; i < len(x); i++ {
		out[i] = gain * x[i-delay]
	}
	return out
}
