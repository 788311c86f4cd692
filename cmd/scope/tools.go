package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/daq"
	"github.com/tphakala/go-scope/internal/diagnostics"
	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/live"
	"github.com/tphakala/go-scope/internal/stimulus"
)

const (
	shutdownTimeout = 5 * time.Second
	defaultStimRate = 48000
)

var (
	calMains float64
	calFile  string

	catalogLatest string
	catalogSkip   bool

	liveAddr      string
	liveThreshold float64

	stimShape    string
	stimFreq     float64
	stimDuration float64
	stimAmp      float64
	stimRate     int
	stimSweep    bool
	stimStart    float64
	stimEnd      float64
	stimOut      string
	stimInverse  string
)

func init() {
	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure the true sample rate against mains hum and store it",
		Long: "Measure the true sample rate against mains hum and store it.\n\n" +
			"Touch the probe or leave it floating near mains wiring while the burst is captured.\n" +
			"Subsequent commands use the stored rate unless --rate or --use-calibration=false is given.",
		Args: cobra.NoArgs,
		RunE: runCalibrate,
	}
	calibrateCmd.Flags().Float64Var(&calMains, "mains", diagnostics.DefaultMainsHz, "Mains frequency in Hz")
	calibrateCmd.Flags().StringVar(&calFile, "file", "", "Calibrate from an archived capture instead of the device")
	rootCmd.AddCommand(calibrateCmd)

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Index the data directory and list archived captures",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}
	catalogCmd.Flags().StringVar(&catalogLatest, "latest", "", "Show only the newest capture with this prefix")
	catalogCmd.Flags().BoolVar(&catalogSkip, "no-index", false, "List without rescanning the data directory")
	rootCmd.AddCommand(catalogCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Stream triggered frames to websocket clients",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&liveAddr, "addr", ":8080", "Listen address; frames are served on /ws")
	liveCmd.Flags().Float64Var(&liveThreshold, "threshold", 0, "Trigger level in volts (0 = ADC mid point)")
	rootCmd.AddCommand(liveCmd)

	stimulusCmd := &cobra.Command{
		Use:   "stimulus",
		Short: "Write a test tone or log sweep to a WAV file",
		Args:  cobra.NoArgs,
		RunE:  runStimulus,
	}
	f := stimulusCmd.Flags()
	f.StringVar(&stimShape, "shape", stimulus.Sine.String(), "Waveform: sine, square, saw, triangle, noise")
	f.Float64Var(&stimFreq, "freq", 1000, "Tone frequency in Hz")
	f.Float64Var(&stimDuration, "duration", stimulus.DefaultSweepDuration, "Length in seconds")
	f.Float64Var(&stimAmp, "amp", 0.5, "Amplitude (0..1)")
	f.IntVar(&stimRate, "audio-rate", defaultStimRate, "Sample rate in Hz")
	f.BoolVar(&stimSweep, "sweep", false, "Write a log sweep instead of a tone")
	f.Float64Var(&stimStart, "start", stimulus.DefaultSweepStart, "Sweep start frequency in Hz")
	f.Float64Var(&stimEnd, "end", stimulus.DefaultSweepEnd, "Sweep end frequency in Hz")
	f.StringVar(&stimOut, "out", "stimulus.wav", "Output WAV file")
	f.StringVar(&stimInverse, "inverse", "", "Also write the sweep's inverse filter to this WAV file")
	rootCmd.AddCommand(stimulusCmd)
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hwDefault := cfg.Acquisition.SampleRate

	var volts []float64
	if calFile != "" {
		if volts, _, _, err = loadVolts(cfg, calFile); err != nil {
			return err
		}
	} else {
		var raw []uint16
		err = daq.WithSession(cmd.Context(), cfg.Serial, nil, func(s *daq.Session) error {
			raw, err = s.CaptureBurst(cfg.Acquisition.BurstSamples)
			return err
		})
		if err != nil {
			return err
		}
		volts = dsp.RawToVolts(raw, cfg.ADC)
	}

	res, err := diagnostics.Calibrate(volts, calMains)
	if err != nil {
		return err
	}
	fmt.Printf("Measured rate: %.1f Hz (SNR %.1f, configured %.1f Hz, error %+.3f %%)\n",
		res.Rate, res.SNR, hwDefault, (res.Rate-hwDefault)/hwDefault*100)

	path := cfg.Paths.CalibrationFile()
	if err := diagnostics.SaveCalibration(path, diagnostics.NewCalibration(res.Rate, hwDefault, time.Now())); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}

func runCatalog(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := archive.OpenCatalog(cfg.Paths.CatalogFile())
	if err != nil {
		return err
	}
	defer cat.Close()

	if !catalogSkip {
		if _, err := cat.Index(cfg.Paths.DataDir); err != nil {
			return err
		}
	}

	if catalogLatest != "" {
		e, err := cat.Latest(catalogLatest)
		if err != nil {
			return err
		}
		printEntry(e)
		return nil
	}

	entries, err := cat.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recordings found.")
		return nil
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func printEntry(e archive.Entry) {
	fields := e.Meta.Display()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if fields[k] == "" {
			continue
		}
		parts = append(parts, k+"="+fields[k])
	}
	when := "-"
	if !e.Meta.Timestamp.IsZero() {
		when = e.Meta.Timestamp.Format(time.DateTime)
	}
	fmt.Printf("%-40s %s %7s %8d  %s\n", e.Name, when, e.Meta.Kind, e.Samples, strings.Join(parts, " "))
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	hub := live.NewHub(cfg, live.Options{Threshold: liveThreshold})

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: liveAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	serveErr := make(chan error, 1)
	go func() {
		glog.Infof("live: listening on %s/ws", liveAddr)
		serveErr <- srv.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = daq.WithSession(ctx, cfg.Serial, nil, func(s *daq.Session) error {
		st, err := s.Stream(cfg.Acquisition.LiveSamples)
		if err != nil {
			return err
		}
		defer st.Close()

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		runErr := make(chan error, 1)
		go func() { runErr <- hub.Run(runCtx, st) }()

		select {
		case err := <-serveErr:
			// the stream is not safe to close under a running Next
			cancel()
			<-runErr
			return err
		case err := <-runErr:
			return err
		}
	})
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStimulus(_ *cobra.Command, _ []string) error {
	var (
		wave []float64
		err  error
	)
	if stimSweep {
		sw := stimulus.Sweep{Start: stimStart, End: stimEnd, Duration: stimDuration, Rate: float64(stimRate), Amplitude: stimAmp}
		if wave, err = sw.Generate(); err != nil {
			return err
		}
		if stimInverse != "" {
			inv, err := sw.InverseFilter()
			if err != nil {
				return err
			}
			if err := stimulus.WriteWAV(stimInverse, inv, stimRate); err != nil {
				return err
			}
			fmt.Printf("Wrote inverse filter %s\n", stimInverse)
		}
	} else {
		shape, err := stimulus.ParseShape(stimShape)
		if err != nil {
			return err
		}
		osc, err := stimulus.NewOscillator(shape, stimFreq, stimAmp, float64(stimRate), uint64(time.Now().UnixNano()))
		if err != nil {
			return err
		}
		wave = osc.Next(int(stimDuration * float64(stimRate)))
	}

	if err := stimulus.WriteWAV(stimOut, wave, stimRate); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d samples at %d Hz)\n", filepath.Clean(stimOut), len(wave), stimRate)
	return nil
}
