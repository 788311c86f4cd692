package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/daq"
	"github.com/tphakala/go-scope/internal/diagnostics"
	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/experiment"
	"github.com/tphakala/go-scope/internal/signal"
	"github.com/tphakala/go-scope/internal/stimulus"
)

var (
	burstSave   bool
	burstPrefix string

	streamPrefix string
	streamFrames int

	playerCmd  string
	playerArgs []string
	notes      string

	sweepOpts  = experiment.DefaultSweepOptions()
	steadyOpts = experiment.DefaultSteadyOptions()
	steadyWave string
)

func init() {
	burstCmd := &cobra.Command{
		Use:   "burst",
		Short: "Capture one burst and check its health",
		Args:  cobra.NoArgs,
		RunE:  runBurst,
	}
	burstCmd.Flags().BoolVar(&burstSave, "save", false, "Archive the capture")
	burstCmd.Flags().StringVar(&burstPrefix, "prefix", "burst", "Archive file prefix")
	rootCmd.AddCommand(burstCmd)

	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Record the stream until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runStream,
	}
	streamCmd.Flags().StringVar(&streamPrefix, "prefix", "session", "Archive file prefix")
	streamCmd.Flags().IntVar(&streamFrames, "frames", 0, "Stop after this many chunks (0 = until Ctrl+C)")
	rootCmd.AddCommand(streamCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Play a log sweep and record the device response",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	f := sweepCmd.Flags()
	f.Float64Var(&sweepOpts.Sweep.Start, "start", sweepOpts.Sweep.Start, "Start frequency in Hz")
	f.Float64Var(&sweepOpts.Sweep.End, "end", sweepOpts.Sweep.End, "End frequency in Hz")
	f.Float64Var(&sweepOpts.Sweep.Duration, "duration", sweepOpts.Sweep.Duration, "Sweep duration in seconds")
	f.Float64Var(&sweepOpts.Sweep.Amplitude, "amp", sweepOpts.Sweep.Amplitude, "Output amplitude (0..1)")
	f.Float64Var(&sweepOpts.Sweep.Rate, "audio-rate", sweepOpts.Sweep.Rate, "Playback sample rate in Hz")
	f.StringVar(&sweepOpts.Prefix, "prefix", sweepOpts.Prefix, "Archive file prefix")
	addPlayerFlags(sweepCmd)
	rootCmd.AddCommand(sweepCmd)

	steadyCmd := &cobra.Command{
		Use:   "steady",
		Short: "Play a steady tone and capture one burst of the response",
		Args:  cobra.NoArgs,
		RunE:  runSteady,
	}
	f = steadyCmd.Flags()
	f.StringVar(&steadyWave, "shape", steadyOpts.Shape.String(), "Waveform: sine, square, saw, triangle, noise")
	f.Float64Var(&steadyOpts.Frequency, "freq", steadyOpts.Frequency, "Tone frequency in Hz")
	f.Float64Var(&steadyOpts.Amplitude, "amp", steadyOpts.Amplitude, "Output amplitude (0..1)")
	f.DurationVar(&steadyOpts.Settle, "settle", steadyOpts.Settle, "Wait before capturing")
	f.StringVar(&steadyOpts.Prefix, "prefix", steadyOpts.Prefix, "Archive file prefix")
	addPlayerFlags(steadyCmd)
	rootCmd.AddCommand(steadyCmd)

	clipCmd := &cobra.Command{
		Use:   "clip name",
		Short: "Capture an instrument clip and archive it under name",
		Args:  cobra.ExactArgs(1),
		RunE:  runClip,
	}
	clipCmd.Flags().StringVar(&notes, "notes", "", "Notes stored with the capture")
	rootCmd.AddCommand(clipCmd)
}

func addPlayerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&playerCmd, "player", "", "Playback command (default aplay, or afplay on macOS)")
	cmd.Flags().StringSliceVar(&playerArgs, "player-args", nil,
		"Playback command arguments; "+experiment.FilePlaceholder+" is replaced by the WAV path")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes stored with the capture")
}

func newRunner(cfg config.Config) *experiment.Runner {
	player := experiment.NewExecPlayer()
	if playerCmd != "" {
		player = &experiment.ExecPlayer{Command: playerCmd, Args: playerArgs}
	}
	return experiment.NewRunner(cfg, nil, player)
}

func runBurst(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var raw []uint16
	err = daq.WithSession(cmd.Context(), cfg.Serial, nil, func(s *daq.Session) error {
		raw, err = s.CaptureBurst(cfg.Acquisition.BurstSamples)
		return err
	})
	if err != nil {
		return err
	}

	volts := dsp.RawToVolts(raw, cfg.ADC)
	health := diagnostics.CheckSignalHealth(volts, cfg.ADC)
	peaks := diagnostics.AnalyzeSpectrumPeaks(volts, cfg.Acquisition.SampleRate)
	printHealth(health)
	fmt.Printf("Dominant frequency: %.1f Hz\n", peaks.Dominant)

	if !burstSave {
		return nil
	}
	sig, err := signal.NewVoltage(volts, cfg.Acquisition.SampleRate)
	if err != nil {
		return err
	}
	path, err := archive.Save(cfg.Paths.BurstDir(), burstPrefix, sig, map[string]archive.Value{
		"dominant_freq": archive.FloatValue(peaks.Dominant),
		"clipped":       archive.BoolValue(!health.Healthy),
		"peak_voltage":  archive.FloatValue(dsp.PeakAmplitude(volts)),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}

func runStream(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println("Recording stream... press Ctrl+C to stop.")
	res, err := experiment.NewRunner(cfg, nil, nil).ContinuousStream(cmd.Context(),
		experiment.ContinuousOptions{Prefix: streamPrefix, MaxFrames: streamFrames})
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s (%d frames, %.1f s)\n", res.Path, res.Frames, res.Signal.Duration())
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sweepOpts.Notes = notes
	res, err := newRunner(cfg).SweepTransfer(cmd.Context(), sweepOpts)
	if err != nil {
		return err
	}
	printHealth(res.Health)
	fmt.Printf("Saved %s (%d frames)\n", res.Path, res.Frames)
	fmt.Printf("Analyze with: scope bode --start %g --end %g --duration %g %s\n",
		sweepOpts.Sweep.Start, sweepOpts.Sweep.End, sweepOpts.Sweep.Duration, res.Path)
	return nil
}

func runSteady(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shape, err := stimulus.ParseShape(steadyWave)
	if err != nil {
		return err
	}
	steadyOpts.Shape = shape
	steadyOpts.Notes = notes

	res, err := newRunner(cfg).SteadyTransfer(cmd.Context(), steadyOpts)
	if err != nil {
		return err
	}
	printHealth(res.Health)
	fmt.Printf("Measured %.1f Hz (played %.1f Hz)\n", res.Dominant, steadyOpts.Frequency)
	fmt.Printf("Saved %s\n", res.Path)
	return nil
}

func runClip(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := experiment.NewRunner(cfg, nil, nil).InstrumentClip(cmd.Context(), args[0], notes)
	if err != nil {
		return err
	}
	printHealth(res.Health)
	fmt.Printf("Pitch: %.1f Hz\n", res.Dominant)
	fmt.Printf("Saved %s\n", res.Path)
	return nil
}

func printHealth(r diagnostics.Report) {
	var flags []string
	if r.Clipping {
		flags = append(flags, "CLIPPING")
	}
	if r.Weak {
		flags = append(flags, "WEAK")
	}
	if r.Drift {
		flags = append(flags, "BIAS DRIFT")
	}
	status := "healthy"
	if len(flags) > 0 {
		status = strings.Join(flags, ", ")
	}
	fmt.Printf("Range %.3f..%.3f V, mean %.3f V, pk-pk %.3f V: %s\n", r.Min, r.Max, r.Mean, r.PeakToPeak, status)
}
