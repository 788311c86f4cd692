// Command scope drives an RP2040 oscilloscope front end: captures, measurement
// experiments, offline analysis of archived captures, and a live websocket view.
//
// Usage:
//
//	scope burst --save
//	scope sweep --start 20 --end 20000 --duration 5
//	scope bode data/continuous/sweep_20240309_140507.parquet
//	scope live --addr :8080
//
// glog flags (-v, -logtostderr, ...) are accepted by every subcommand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/diagnostics"
)

var (
	configPath     string
	portOverride   string
	rateOverride   float64
	dataDir        string
	useCalibration bool
)

var rootCmd = &cobra.Command{
	Use:           "scope",
	Short:         "Capture and analyze signals from an RP2040 oscilloscope.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file (defaults are used when empty)")
	pf.StringVar(&portOverride, "port", "", "Serial port of the capture device")
	pf.Float64Var(&rateOverride, "rate", 0, "Sample rate in Hz, overrides config and calibration")
	pf.StringVar(&dataDir, "data-dir", "", "Directory for archives, catalog and calibration")
	pf.BoolVar(&useCalibration, "use-calibration", true, "Use the stored mains calibration as the sample rate")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}

// loadConfig builds the configuration from file, calibration and flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}
	if portOverride != "" {
		cfg.Serial.Port = portOverride
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}

	switch {
	case rateOverride > 0:
		cfg.Acquisition.SampleRate = rateOverride
	case useCalibration:
		cal, err := diagnostics.LoadCalibration(cfg.Paths.CalibrationFile())
		switch {
		case err == nil:
			glog.V(1).Infof("using calibrated rate %.1f Hz from %s", cal.Rate, cal.DateStr)
			cfg.Acquisition.SampleRate = cal.Rate
		case errors.Is(err, fs.ErrNotExist):
		default:
			glog.Warningf("ignoring calibration: %v", err)
		}
	}

	return cfg, cfg.Validate()
}

func main() {
	// cobra sets the glog flag values; glog only needs the go flag set marked parsed
	_ = flag.CommandLine.Parse(nil)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
