// Package scope is a host-side toolkit for an RP2040 oscilloscope front end that
// streams little-endian uint16 ADC samples over USB serial.
//
// It captures bursts and continuous streams, conditions the samples, and runs
// the measurements used to characterize audio devices: spectra, software
// triggering, total harmonic distortion, log-sweep (Farina) deconvolution and
// the cross-spectral H1 transfer estimate.
//
// # Features
//
//   - Burst ('s') and stream ('v') capture with scoped port handling
//   - Hann-windowed spectra, fundamental estimation and selective THD
//   - Exponential sine sweep and matching inverse filter generation
//   - Bode magnitude by impulse-response deconvolution, H1 with coherence
//   - Signal health checks for clipping, weak level and bias drift
//   - Compressed parquet archives with typed metadata and a sqlite catalog
//   - Optional SIMD acceleration (AVX2/NEON) via github.com/tphakala/simd
//
// # Quick Start
//
// Capture one burst and check it:
//
//	cfg := scope.DefaultConfig()
//	sig, err := scope.CaptureBurst(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	volts, _ := scope.Volts(sig, cfg)
//	report := scope.CheckHealth(volts, cfg)
//
// Measure a device from a captured sweep response:
//
//	opts := scope.DefaultBodeOptions()
//	opts.Sweep = scope.Sweep{Start: 20, End: 20000, Duration: 5}
//	res, err := scope.Bode(volts, sig.Rate(), opts)
//
// # Signals
//
// A [Signal] holds either raw ADC counts or volts, never both. Raw captures are
// converted explicitly with [Volts] (or [Signal.ToVoltage]) so counts are never
// mistaken for volts.
//
// # Estimators
//
// [Bode] is the primary estimator. It convolves the response with the sweep's
// inverse filter, windows the linear impulse response from 2 ms before to 50 ms
// after its peak, and reports the smoothed magnitude relative to its in-band
// maximum. Harmonic distortion lands before the window and is excluded.
//
// [H1] estimates Pxy/Pxx between a source and the capture with Welch averaging.
// It needs the source signal and is useful for steady stimuli such as noise.
//
// # Thread Safety
//
// Analysis functions are pure and safe for concurrent use. A capture session
// owns its serial port and must not be shared between goroutines.
package scope
