// Package transfer derives transfer functions from stimulus/response pairs.
//
// The primary estimator is Farina deconvolution of an exponential sweep response
// (ComputeBode). ComputeH1 is the cross-spectral H1 estimator kept as a secondary
// reference; it is less robust when the device under test is nonlinear.
package transfer

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"

	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/stimulus"
)

// Errors returned when a result cannot be formed from the inputs.
var (
	ErrDegenerate          = errors.New("degenerate input")
	ErrFundamentalNotFound = errors.New("fundamental not found in spectrum")
)

// ImpulseResponse is the full deconvolution output with the linear impulse position.
type ImpulseResponse struct {
	Samples   []float64
	PeakIndex int
}

// ComputeImpulseResponse deconvolves a captured sweep response with the sweep's
// inverse filter.
//
// Harmonic distortion products land before the linear impulse, so the peak is searched
// in the second half of the full convolution only.
func ComputeImpulseResponse(response []float64, sweep stimulus.Sweep) (ImpulseResponse, error) {
	if len(response) == 0 {
		return ImpulseResponse{}, fmt.Errorf("%w: empty response", ErrDegenerate)
	}
	inv, err := sweep.InverseFilter()
	if err != nil {
		return ImpulseResponse{}, err
	}
	if len(inv) == 0 {
		return ImpulseResponse{}, fmt.Errorf("%w: sweep has no samples", ErrDegenerate)
	}

	ir := dsp.ConvolveFull(response, inv)
	start := len(ir) / 2
	peak := start
	for i := start; i < len(ir); i++ {
		if math.Abs(ir[i]) > math.Abs(ir[peak]) {
			peak = i
		}
	}

	glog.V(2).Infof("deconvolution: %d samples, linear peak at %d", len(ir), peak)
	return ImpulseResponse{Samples: ir, PeakIndex: peak}, nil
}
