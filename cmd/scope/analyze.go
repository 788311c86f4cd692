package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/diagnostics"
	"github.com/tphakala/go-scope/internal/dsp"
	"github.com/tphakala/go-scope/internal/stimulus"
	"github.com/tphakala/go-scope/internal/transfer"
)

const (
	methodDeconv = "deconv"
	methodH1     = "h1"

	bandsPerOctave = 3
	fundamentalMin = 20.0
	fundamentalMax = 20000.0
)

var (
	bodeMethod string
	bodeSource string
	bodeCSV    string
	bodeSweep  = stimulus.DefaultSweep(0)
	bodeFlat   bool

	thdFundamental float64
	thdHarmonics   int
)

func init() {
	bodeCmd := &cobra.Command{
		Use:   "bode file",
		Short: "Estimate the frequency response of an archived capture",
		Long: "Estimate the frequency response of an archived capture.\n\n" +
			"deconv (default) deconvolves a log-sweep response; the sweep parameters are read\n" +
			"from the archive metadata unless given as flags. h1 estimates Pxy/Pxx against\n" +
			"the --source signal (WAV or archive).",
		Args: cobra.ExactArgs(1),
		RunE: runBode,
	}
	f := bodeCmd.Flags()
	f.StringVar(&bodeMethod, "method", methodDeconv, "Estimator: deconv or h1")
	f.StringVar(&bodeSource, "source", "", "Source signal for h1 (WAV or .parquet)")
	f.StringVar(&bodeCSV, "csv", "", "Write the full response to this CSV file")
	f.Float64Var(&bodeSweep.Start, "start", bodeSweep.Start, "Sweep start frequency in Hz")
	f.Float64Var(&bodeSweep.End, "end", bodeSweep.End, "Sweep end frequency in Hz")
	f.Float64Var(&bodeSweep.Duration, "duration", bodeSweep.Duration, "Sweep duration in seconds")
	f.BoolVar(&bodeFlat, "flat-inverse", false, "Weight the inverse filter by R^t instead of exp(t·ln R / duration)")
	rootCmd.AddCommand(bodeCmd)

	thdCmd := &cobra.Command{
		Use:   "thd file",
		Short: "Measure THD and the harmonic series of an archived capture",
		Args:  cobra.ExactArgs(1),
		RunE:  runTHD,
	}
	thdCmd.Flags().Float64Var(&thdFundamental, "fundamental", 0, "Fundamental in Hz (0 = strongest peak)")
	thdCmd.Flags().IntVar(&thdHarmonics, "harmonics", transfer.DefaultHarmonics, "Number of harmonics")
	rootCmd.AddCommand(thdCmd)

	healthCmd := &cobra.Command{
		Use:   "health file",
		Short: "Check an archived capture for clipping, weak level and bias drift",
		Args:  cobra.ExactArgs(1),
		RunE:  runHealth,
	}
	rootCmd.AddCommand(healthCmd)
}

// loadVolts loads an archive as volts. The archived rate wins unless --rate is set.
func loadVolts(cfg config.Config, path string) ([]float64, float64, archive.Metadata, error) {
	rec, err := archive.Load(path)
	if err != nil {
		return nil, 0, archive.Metadata{}, err
	}
	volts, err := rec.Signal.ToVoltage(cfg.ADC).Voltages()
	if err != nil {
		return nil, 0, archive.Metadata{}, err
	}
	rate := rec.Signal.Rate()
	if rateOverride > 0 {
		rate = rateOverride
	}
	return volts, rate, rec.Meta, nil
}

func runBode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	volts, rate, meta, err := loadVolts(cfg, args[0])
	if err != nil {
		return err
	}
	volts = dsp.RemoveDC(volts)

	var freqs, gains []float64
	switch bodeMethod {
	case methodDeconv:
		opts := transfer.DefaultBodeOptions()
		opts.Sweep = sweepFromMeta(cmd, meta)
		res, err := transfer.ComputeBode(volts, rate, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Deconvolution %g-%g Hz over %g s: peak %.2f dB at %.1f Hz\n",
			opts.Sweep.Start, opts.Sweep.End, opts.Sweep.Duration, res.PeakDB, res.PeakFreq)
		freqs, gains = res.Freqs, res.GainDB

	case methodH1:
		if bodeSource == "" {
			return fmt.Errorf("--method h1 needs --source")
		}
		src, srcRate, err := loadSource(cfg, bodeSource)
		if err != nil {
			return err
		}
		res, err := transfer.ComputeH1(dsp.RemoveDC(src), volts, rate, transfer.H1Options{SourceRate: srcRate})
		if err != nil {
			return err
		}
		fmt.Printf("H1 estimate: peak %.2f dB at %.1f Hz, mean coherence %.3f\n",
			res.PeakDB, res.PeakFreq, dsp.Mean(res.Coherence))
		freqs, gains = res.Freqs, res.GainDB

	default:
		return fmt.Errorf("unknown method %q (want %s or %s)", bodeMethod, methodDeconv, methodH1)
	}

	printBands(freqs, gains)
	if bodeCSV != "" {
		if err := writeResponseCSV(bodeCSV, freqs, gains); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", bodeCSV)
	}
	return nil
}

// sweepFromMeta prefers explicit flags, then archive metadata, then defaults.
func sweepFromMeta(cmd *cobra.Command, meta archive.Metadata) stimulus.Sweep {
	sw := bodeSweep
	pick := func(flag, key string, dst *float64) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := meta.Float(key); ok {
			*dst = v
		}
	}
	pick("start", "f_start", &sw.Start)
	pick("end", "f_end", &sw.End)
	pick("duration", "duration", &sw.Duration)
	if bodeFlat {
		sw.Weighting = stimulus.WeightFrequency
	}
	return sw
}

// loadSource reads a WAV stimulus or an archived capture.
func loadSource(cfg config.Config, path string) ([]float64, float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		x, rate, err := stimulus.ReadWAV(path)
		return x, float64(rate), err
	}
	x, rate, _, err := loadVolts(cfg, path)
	return x, rate, err
}

// printBands prints the response at third-octave centres from 20 Hz.
func printBands(freqs, gains []float64) {
	if len(freqs) == 0 {
		return
	}
	fmt.Println("  Freq (Hz)   Gain (dB)")
	for k := 0; ; k++ {
		center := fundamentalMin * math.Pow(2, float64(k)/bandsPerOctave)
		if center > freqs[len(freqs)-1] {
			return
		}
		if center < freqs[0] {
			continue
		}
		i := nearest(freqs, center)
		fmt.Printf("  %9.1f   %9.2f\n", freqs[i], gains[i])
	}
}

func nearest(freqs []float64, f float64) int {
	best := 0
	for i, v := range freqs {
		if math.Abs(v-f) < math.Abs(freqs[best]-f) {
			best = i
		}
	}
	return best
}

func writeResponseCSV(path string, freqs, gains []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"freq_hz", "gain_db"})
	for i := range freqs {
		_ = w.Write([]string{
			strconv.FormatFloat(freqs[i], 'f', 3, 64),
			strconv.FormatFloat(gains[i], 'f', 4, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runTHD(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	volts, rate, _, err := loadVolts(cfg, args[0])
	if err != nil {
		return err
	}
	volts = dsp.RemoveDC(volts)

	fund := thdFundamental
	if fund <= 0 {
		spec := dsp.ComputeSpectrum(volts, rate)
		fund = dsp.EstimateFundamental(spec.Freqs, spec.Mags, fundamentalMin, fundamentalMax)
	}
	fmt.Printf("Fundamental: %.1f Hz\n", fund)
	fmt.Printf("THD: %.3f %%\n", dsp.SelectiveTHD(volts, rate, fund, thdHarmonics))

	harmonics, err := transfer.ExtractHarmonics(volts, rate, fund, thdHarmonics)
	if err != nil {
		return err
	}
	fmt.Println("  Order   Parity   Rel. magnitude")
	for _, h := range harmonics {
		fmt.Printf("  %-5s   %-6s   %.5f\n", h.Label, h.Parity, h.Magnitude)
	}
	return nil
}

func runHealth(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	volts, rate, _, err := loadVolts(cfg, args[0])
	if err != nil {
		return err
	}
	printHealth(diagnostics.CheckSignalHealth(volts, cfg.ADC))
	peaks := diagnostics.AnalyzeSpectrumPeaks(volts, rate)
	fmt.Printf("Dominant frequency: %.1f Hz\n", peaks.Dominant)
	if len(peaks.Top) > 1 {
		fmt.Printf("Other peaks: %.1f Hz\n", peaks.Top[1:])
	}
	return nil
}
