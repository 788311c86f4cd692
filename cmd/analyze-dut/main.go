// Command analyze-dut checks the sweep measurement chain offline: it designs a
// Kaiser low-pass FIR as a stand-in device, plays a log sweep through it and
// compares the deconvolved Bode response with the filter's designed response.
//
// Usage:
//
//	analyze-dut
//	analyze-dut -cutoff 3000 -transition 1000 -attenuation 60
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/filter"
	"github.com/tphakala/go-scope/internal/stimulus"
	"github.com/tphakala/go-scope/internal/transfer"
)

const (
	// Stand-in device defaults
	defaultCutoffHz     = 5000.0
	defaultTransitionHz = 2000.0
	defaultAttenuation  = 80.0

	// Measurement defaults
	defaultPlaybackRate = 48000.0
	defaultDuration     = 2.0
	tailSeconds         = 0.5 // silence after the sweep so the impulse tail is captured

	// Display
	maxPassbandErrorDB = 1.0
)

// probeFreqs are reported in the comparison table.
var probeFreqs = []float64{50, 100, 200, 500, 1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cutoff := flag.Float64("cutoff", defaultCutoffHz, "Low-pass cutoff in Hz (-6 dB point)")
	transition := flag.Float64("transition", defaultTransitionHz, "Transition bandwidth in Hz")
	attenuation := flag.Float64("attenuation", defaultAttenuation, "Stopband attenuation in dB")
	captureRate := flag.Float64("rate", config.DefaultSampleRate, "Capture sample rate in Hz")
	playbackRate := flag.Float64("playback", defaultPlaybackRate, "Stimulus playback rate in Hz")
	duration := flag.Float64("duration", defaultDuration, "Sweep duration in seconds")
	flag.Parse()
	rate := *captureRate

	fmt.Println("=== Designing stand-in device ===")
	taps, err := filter.DesignLowPassAuto(*cutoff/rate, *transition/rate, *attenuation)
	if err != nil {
		return err
	}
	fmt.Printf("  Taps: %d (group delay %.2f ms)\n", len(taps), float64(len(taps)-1)/2/rate*1000)

	sweep := stimulus.Sweep{
		Start:     stimulus.DefaultSweepStart,
		End:       stimulus.DefaultSweepEnd,
		Duration:  *duration,
		Rate:      *playbackRate,
		Amplitude: 1,
		Weighting: stimulus.WeightFrequency,
	}
	played, err := sweep.Generate()
	if err != nil {
		return err
	}

	// the ADC sees the playback resampled to its own clock
	captured, err := filter.Resample(played, *playbackRate, rate)
	if err != nil {
		return err
	}
	captured = append(captured, make([]float64, int(tailSeconds*rate))...)
	response := filter.Apply(taps, captured)

	fmt.Printf("\n=== Measuring (sweep %g-%g Hz, %g s, played at %g Hz) ===\n",
		sweep.Start, sweep.End, sweep.Duration, *playbackRate)
	opts := transfer.DefaultBodeOptions()
	opts.Sweep = sweep
	res, err := transfer.ComputeBode(response, rate, opts)
	if err != nil {
		return err
	}
	fmt.Printf("  Peak: %.2f dB at %.1f Hz\n", res.PeakDB, res.PeakFreq)

	designed := filter.FrequencyResponse(taps, probeFreqs, rate).MagnitudeDB()

	fmt.Println("\n  Freq (Hz)   Designed (dB)   Measured (dB)   Error (dB)")
	worst := 0.0
	for i, f := range probeFreqs {
		if f <= sweep.Start || f >= sweep.End {
			continue
		}
		measured := gainAt(res, f)
		diff := measured - designed[i]
		fmt.Printf("  %9.0f   %13.2f   %13.2f   %10.2f\n", f, designed[i], measured, diff)
		if f < *cutoff-*transition/2 {
			worst = max(worst, math.Abs(diff))
		}
	}

	fmt.Printf("\nWorst passband error: %.2f dB\n", worst)
	if worst > maxPassbandErrorDB {
		fmt.Println("WARNING: passband error exceeds the expected measurement accuracy")
	}
	return nil
}

// gainAt returns the measured gain at the bin nearest f.
func gainAt(res transfer.BodeResult, f float64) float64 {
	best := 0
	for i, v := range res.Freqs {
		if math.Abs(v-f) < math.Abs(res.Freqs[best]-f) {
			best = i
		}
	}
	return res.GainDB[best]
}
