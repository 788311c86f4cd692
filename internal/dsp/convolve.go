package dsp

import (
	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Convolver computes full linear convolutions against a fixed kernel with the
// overlap-add method.
//
//  1. The input is cut into blocks of blockSize = fftSize - kernelLen + 1 samples
//  2. Each zero-padded block is transformed, multiplied by the kernel spectrum and inverted
//  3. The fftSize-sample block results are summed into the output at their block offset
//
// A Convolver reuses its buffers and is not safe for concurrent use.
type Convolver struct {
	fft       *fourier.FFT
	fftSize   int
	blockSize int

	// Precomputed kernel in frequency domain
	kernel    []float64
	kernelFFT []complex128
	kernelLen int
	scale     float64 // 1/fftSize, gonum's inverse transform is unnormalized

	block      []float64
	blockFFT   []complex128
	productFFT []complex128
	ifftResult []float64
}

// NewConvolver prepares a convolver for kernel. It returns nil for an empty kernel.
func NewConvolver(kernel []float64) *Convolver {
	kernelLen := len(kernel)
	if kernelLen == 0 {
		return nil
	}

	// next power of 2 >= 2*kernelLen keeps at least half of each block useful
	fftSize := defaultFFTBlockSize
	for fftSize < 2*kernelLen {
		fftSize *= 2
	}

	fft := fourier.NewFFT(fftSize)
	padded := make([]float64, fftSize)
	copy(padded, kernel)
	kernelFFT := fft.Coefficients(nil, padded)

	fftLen := fftSize/fftHermitianDivisor + 1

	return &Convolver{
		fft:        fft,
		fftSize:    fftSize,
		blockSize:  fftSize - kernelLen + 1,
		kernel:     append([]float64(nil), kernel...),
		kernelFFT:  kernelFFT,
		kernelLen:  kernelLen,
		scale:      1.0 / float64(fftSize),
		block:      make([]float64, fftSize),
		blockFFT:   make([]complex128, fftLen),
		productFFT: make([]complex128, fftLen),
		ifftResult: make([]float64, fftSize),
	}
}

// Full returns the full convolution of signal with the kernel,
// len(signal)+kernelLen-1 samples long.
func (c *Convolver) Full(signal []float64) []float64 {
	if len(signal) == 0 {
		return nil
	}
	out := make([]float64, len(signal)+c.kernelLen-1)

	if c.kernelLen < minKernelForFFT {
		c.direct(out, signal)
		return out
	}

	for start := 0; start < len(signal); start += c.blockSize {
		end := min(start+c.blockSize, len(signal))

		clear(c.block)
		copy(c.block, signal[start:end])

		c.blockFFT = c.fft.Coefficients(c.blockFFT, c.block)
		c128.Mul(c.productFFT, c.blockFFT, c.kernelFFT)
		c.ifftResult = c.fft.Sequence(c.ifftResult, c.productFFT)
		f64.Scale(c.ifftResult, c.ifftResult, c.scale)

		// only (end-start)+kernelLen-1 samples of the block result are non-zero
		valid := min(end-start+c.kernelLen-1, len(out)-start)
		dst := out[start : start+valid]
		for i := range dst {
			dst[i] += c.ifftResult[i]
		}
	}
	return out
}

// direct evaluates out[n] = Σ signal[n-k]·kernel[k] with dot products over a
// zero-padded copy of the signal and the reversed kernel.
func (c *Convolver) direct(out, signal []float64) {
	pad := c.kernelLen - 1
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)

	reversed := make([]float64, c.kernelLen)
	for i, v := range c.kernel {
		reversed[c.kernelLen-1-i] = v
	}
	for n := range out {
		out[n] = f64.DotProduct(padded[n:n+c.kernelLen], reversed)
	}
}

// ConvolveFull returns the full linear convolution of a and b.
// The longer input is streamed through a convolver built from the shorter one.
func ConvolveFull(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	return NewConvolver(b).Full(a)
}

// Correlate returns the full cross-correlation of a against b. Index k of the
// result corresponds to lag k-(len(b)-1).
func Correlate(a, b []float64) []float64 {
	reversed := make([]float64, len(b))
	for i, v := range b {
		reversed[len(b)-1-i] = v
	}
	return ConvolveFull(a, reversed)
}

// CorrelationLag returns the lag at which target best matches ref.
// A positive lag means target is delayed relative to ref.
func CorrelationLag(ref, target []float64) int {
	corr := Correlate(target, ref)
	if len(corr) == 0 {
		return 0
	}
	best := 0
	for i, v := range corr {
		if v > corr[best] {
			best = i
		}
	}
	return best - (len(ref) - 1)
}

// SmartAlign rotates target so that it lines up with ref at the correlation peak.
func SmartAlign(ref, target []float64) []float64 {
	return Roll(target, -CorrelationLag(ref, target))
}
