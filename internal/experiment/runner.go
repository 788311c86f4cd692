// Package experiment orchestrates measurement runs: playing a stimulus while
// capturing the device response, checking the capture and archiving it.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/capture"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/daq"
	"github.com/tphakala/go-scope/internal/diagnostics"
	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/signal"
	"github.com/tphakala/go-scope/internal/stimulus"
)

const (
	// DefaultAudioRate is the playback rate of generated stimulus files.
	DefaultAudioRate = 48000

	// DefaultSweepGrace is how long a sweep capture may outlast the sweep itself.
	DefaultSweepGrace = 2 * time.Second
	// DefaultSteadySettle is the wait between starting a tone and capturing.
	DefaultSteadySettle = 500 * time.Millisecond

	progressEvery = 100 // frames between continuous-stream progress logs
	toneMargin    = time.Second
)

// ErrNoData is returned when a capture loop ends before receiving any samples.
var ErrNoData = errors.New("no data captured")

// Result describes an archived capture.
type Result struct {
	Path     string
	Signal   signal.Signal // as archived: raw for streams, volts for bursts
	Health   diagnostics.Report
	Dominant float64 // Hz; 0 when no spectrum analysis was run
	Frames   int
}

// Runner runs experiments against one device configuration.
type Runner struct {
	cfg    config.Config
	open   daq.Opener
	player Player
}

// NewRunner creates a runner. A nil opener selects the serial port and a nil
// player selects NewExecPlayer.
func NewRunner(cfg config.Config, open daq.Opener, player Player) *Runner {
	if player == nil {
		player = NewExecPlayer()
	}
	return &Runner{cfg: cfg, open: open, player: player}
}

// SweepOptions configures SweepTransfer.
type SweepOptions struct {
	Sweep  stimulus.Sweep
	Prefix string
	Notes  string
	// Grace extends the capture deadline past the sweep duration.
	Grace time.Duration
}

// DefaultSweepOptions sweeps 20 Hz to 20 kHz over 5 s at half scale.
func DefaultSweepOptions() SweepOptions {
	sw := stimulus.DefaultSweep(DefaultAudioRate)
	sw.Amplitude = 0.5
	return SweepOptions{Sweep: sw, Prefix: "sweep", Grace: DefaultSweepGrace}
}

// SweepTransfer plays a log sweep and streams the device response until the
// player finishes or the sweep duration plus grace elapses. The raw counts are
// archived with voltage statistics as metadata.
func (r *Runner) SweepTransfer(ctx context.Context, opts SweepOptions) (Result, error) {
	sw := opts.Sweep
	glog.Infof("experiment: generating sweep %g-%g Hz over %gs", sw.Start, sw.End, sw.Duration)
	wave, err := sw.Generate()
	if err != nil {
		return Result{}, err
	}
	wav, cleanup, err := writeStimulus("sweep", wave, int(sw.Rate))
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	deadline := time.Duration(sw.Duration*float64(time.Second)) + opts.Grace
	buf := capture.NewBuffer[uint16](r.cfg.Acquisition.LiveSamples)
	frames := 0

	err = daq.WithSession(ctx, r.cfg.Serial, r.open, func(s *daq.Session) error {
		st, err := s.Stream(r.cfg.Acquisition.LiveSamples)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := r.player.Start(ctx, wav); err != nil {
			return err
		}
		defer r.player.Stop()

		start := time.Now()
		for {
			chunk, err := st.Next(ctx)
			if err != nil {
				return err
			}
			buf.Write(chunk)
			frames++

			if !r.player.Active() {
				return nil
			}
			if time.Since(start) > deadline {
				glog.Warningf("experiment: sweep capture timed out after %v", deadline)
				return nil
			}
		}
	})
	if err != nil {
		return Result{}, err
	}

	raw, err := signal.NewRaw(buf.ReadAll(), r.cfg.Acquisition.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	volts, _ := raw.ToVoltage(r.cfg.ADC).Voltages()
	health := diagnostics.CheckSignalHealth(volts, r.cfg.ADC)

	meta := r.voltageMeta(volts, health, opts.Notes)
	meta["audio_type"] = archive.StringValue("sweep")
	meta["f_start"] = archive.FloatValue(sw.Start)
	meta["f_end"] = archive.FloatValue(sw.End)
	meta["duration"] = archive.FloatValue(sw.Duration)
	meta["amp"] = archive.FloatValue(sw.Amplitude)

	path, err := archive.Save(r.cfg.Paths.ContinuousDir(), opts.Prefix, raw, meta)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Signal: raw, Health: health, Frames: frames}, nil
}

// SteadyOptions configures SteadyTransfer.
type SteadyOptions struct {
	Shape     stimulus.Shape
	Frequency float64
	Amplitude float64
	Settle    time.Duration
	Prefix    string
	Notes     string
}

// DefaultSteadyOptions is a 1 kHz sine at half scale.
func DefaultSteadyOptions() SteadyOptions {
	return SteadyOptions{
		Shape:     stimulus.Sine,
		Frequency: 1000,
		Amplitude: 0.5,
		Settle:    DefaultSteadySettle,
		Prefix:    "steady",
	}
}

// SteadyTransfer plays a continuous tone, waits for it to settle and captures one
// burst. The burst is checked for health and its dominant frequency, then
// archived in volts.
func (r *Runner) SteadyTransfer(ctx context.Context, opts SteadyOptions) (Result, error) {
	glog.Infof("experiment: starting oscillator %s @ %g Hz", opts.Shape, opts.Frequency)

	// the tone has to outlast the settle wait, the port settle and the burst
	burst := time.Duration(float64(r.cfg.Acquisition.BurstSamples) / r.cfg.Acquisition.SampleRate * float64(time.Second))
	length := opts.Settle + r.cfg.Serial.SettleDelay + burst + toneMargin
	osc, err := stimulus.NewOscillator(opts.Shape, opts.Frequency, opts.Amplitude, DefaultAudioRate, uint64(time.Now().UnixNano()))
	if err != nil {
		return Result{}, err
	}
	wave := osc.Next(int(length.Seconds() * DefaultAudioRate))

	wav, cleanup, err := writeStimulus("tone", wave, DefaultAudioRate)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	if err := r.player.Start(ctx, wav); err != nil {
		return Result{}, err
	}
	defer r.player.Stop()

	if err := sleep(ctx, opts.Settle); err != nil {
		return Result{}, err
	}

	volts, err := r.burstVolts(ctx)
	if err != nil {
		return Result{}, err
	}
	health := diagnostics.CheckSignalHealth(volts, r.cfg.ADC)
	peaks := diagnostics.AnalyzeSpectrumPeaks(volts, r.cfg.Acquisition.SampleRate)

	meta := r.voltageMeta(volts, health, opts.Notes)
	meta["audio_type"] = archive.StringValue("steady")
	meta["shape"] = archive.StringValue(opts.Shape.String())
	meta["freq"] = archive.FloatValue(opts.Frequency)
	meta["amp"] = archive.FloatValue(opts.Amplitude)
	meta["measured_freq"] = archive.FloatValue(peaks.Dominant)

	return r.saveVolts(opts.Prefix, volts, meta, health, peaks.Dominant)
}

// InstrumentClip captures one burst of whatever is plugged in, checks it and
// archives it in volts under name.
func (r *Runner) InstrumentClip(ctx context.Context, name, notes string) (Result, error) {
	glog.Infof("experiment: recording instrument %q", name)

	volts, err := r.burstVolts(ctx)
	if err != nil {
		return Result{}, err
	}
	health := diagnostics.CheckSignalHealth(volts, r.cfg.ADC)
	peaks := diagnostics.AnalyzeSpectrumPeaks(volts, r.cfg.Acquisition.SampleRate)

	meta := r.voltageMeta(volts, health, notes)
	meta["dominant_freq"] = archive.FloatValue(peaks.Dominant)

	return r.saveVolts(name, volts, meta, health, peaks.Dominant)
}

// ContinuousOptions configures ContinuousStream.
type ContinuousOptions struct {
	Prefix string
	// MaxFrames stops the capture after this many chunks; 0 streams until the
	// context is cancelled.
	MaxFrames int
}

// ContinuousStream records chunks until ctx is cancelled or MaxFrames is reached
// and archives everything as raw counts. Cancellation is the normal way to stop
// and is not reported as an error.
func (r *Runner) ContinuousStream(ctx context.Context, opts ContinuousOptions) (Result, error) {
	acq := r.cfg.Acquisition
	mbPerMin := acq.SampleRate * 2 * 60 / (1 << 20)
	glog.Infof("experiment: recording stream, about %.2f MB/min", mbPerMin)

	buf := capture.NewBuffer[uint16](acq.LiveSamples * progressEvery)
	frames := 0
	start := time.Now()

	err := daq.WithSession(ctx, r.cfg.Serial, r.open, func(s *daq.Session) error {
		st, err := s.Stream(acq.LiveSamples)
		if err != nil {
			return err
		}
		defer st.Close()

		for opts.MaxFrames <= 0 || frames < opts.MaxFrames {
			chunk, err := st.Next(ctx)
			if err != nil {
				return err
			}
			buf.Write(chunk)
			frames++
			if frames%progressEvery == 0 {
				glog.Infof("experiment: captured %d frames (%.1fs)", frames, time.Since(start).Seconds())
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return Result{}, err
	}
	if frames == 0 {
		return Result{}, ErrNoData
	}

	raw, err := signal.NewRaw(buf.ReadAll(), acq.SampleRate)
	if err != nil {
		return Result{}, err
	}
	path, err := archive.Save(r.cfg.Paths.ContinuousDir(), opts.Prefix, raw, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Signal: raw, Frames: frames}, nil
}

func (r *Runner) burstVolts(ctx context.Context) ([]float64, error) {
	var raw []uint16
	err := daq.WithSession(ctx, r.cfg.Serial, r.open, func(s *daq.Session) error {
		var err error
		raw, err = s.CaptureBurst(r.cfg.Acquisition.BurstSamples)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dsp.RawToVolts(raw, r.cfg.ADC), nil
}

func (r *Runner) saveVolts(prefix string, volts []float64, meta map[string]archive.Value, health diagnostics.Report, dominant float64) (Result, error) {
	sig, err := signal.NewVoltage(volts, r.cfg.Acquisition.SampleRate)
	if err != nil {
		return Result{}, err
	}
	path, err := archive.Save(r.cfg.Paths.BurstDir(), prefix, sig, meta)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Signal: sig, Health: health, Dominant: dominant, Frames: 1}, nil
}

// voltageMeta is the metadata shared by every experiment.
func (r *Runner) voltageMeta(volts []float64, health diagnostics.Report, notes string) map[string]archive.Value {
	return map[string]archive.Value{
		"v_ref":        archive.FloatValue(r.cfg.ADC.VRef),
		"adc_bits":     archive.FloatValue(float64(r.cfg.ADC.Bits)),
		"v_min":        archive.FloatValue(health.Min),
		"v_max":        archive.FloatValue(health.Max),
		"dc_offset":    archive.FloatValue(health.Mean),
		"clipped":      archive.BoolValue(!health.Healthy),
		"peak_voltage": archive.FloatValue(dsp.PeakAmplitude(volts)),
		"user_notes":   archive.StringValue(notes),
	}
}

// writeStimulus writes samples to a temporary WAV file for the player.
func writeStimulus(name string, samples []float64, rate int) (string, func(), error) {
	dir, err := os.MkdirTemp("", "scope-stimulus-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create stimulus dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, name+".wav")
	if err := stimulus.WriteWAV(path, samples, rate); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
