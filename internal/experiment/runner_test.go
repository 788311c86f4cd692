package experiment_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/archive"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/daq"
	"github.com/tphakala/go-scope/internal/daq/daqtest"
	"github.com/tphakala/go-scope/internal/experiment"
	"github.com/tphakala/go-scope/internal/signal"
	"github.com/tphakala/go-scope/internal/stimulus"
)

const (
	testBurst  = 4096
	testLive   = 64
	tonePeriod = 50 // samples
)

// fakePlayer stays active for a fixed number of Active calls.
type fakePlayer struct {
	mu        sync.Mutex
	activeFor int
	checks    int
	started   []string
	fileSeen  bool
	stops     int
	startErr  error
}

func (p *fakePlayer) Start(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started = append(p.started, path)
	_, err := os.Stat(path)
	p.fileSeen = err == nil
	return nil
}

func (p *fakePlayer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	return p.checks < p.activeFor
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Serial.SettleDelay = 0
	cfg.Acquisition.BurstSamples = testBurst
	cfg.Acquisition.LiveSamples = testLive
	cfg.Paths.DataDir = t.TempDir()
	return cfg
}

func toneDevice(opts ...daqtest.Option) *daqtest.Device {
	tone := func(i int) uint16 {
		return uint16(32768 + 10000*math.Sin(2*math.Pi*float64(i)/tonePeriod))
	}
	return daqtest.NewDevice(testBurst, testLive, append([]daqtest.Option{daqtest.WithSamples(tone)}, opts...)...)
}

func shortSweep() experiment.SweepOptions {
	opts := experiment.DefaultSweepOptions()
	opts.Sweep = stimulus.Sweep{Start: 100, End: 2000, Duration: 0.1, Rate: 8000, Amplitude: 0.5}
	opts.Grace = time.Minute
	opts.Notes = "unit test"
	return opts
}

func TestSweepTransferStopsWithPlayer(t *testing.T) {
	cfg := testConfig(t)
	dev := toneDevice()
	player := &fakePlayer{activeFor: 5}
	r := experiment.NewRunner(cfg, dev.Opener(), player)

	res, err := r.SweepTransfer(context.Background(), shortSweep())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Frames)
	assert.True(t, player.fileSeen, "stimulus WAV must exist while playing")
	assert.Equal(t, 1, player.stops)
	_, err = os.Stat(player.started[0])
	assert.True(t, os.IsNotExist(err), "stimulus WAV is removed afterwards")

	assert.Equal(t, filepath.Join(cfg.Paths.ContinuousDir()), filepath.Dir(res.Path))
	assert.True(t, res.Health.Healthy)

	rec, err := archive.Load(res.Path)
	require.NoError(t, err)
	require.Equal(t, signal.KindRaw, rec.Signal.Kind())
	raw, err := rec.Signal.Raw()
	require.NoError(t, err)
	assert.Equal(t, dev.Expected(0, 5*testLive), raw)

	kind, _ := rec.Meta.Extra["audio_type"].Str()
	assert.Equal(t, "sweep", kind)
	fEnd, _ := rec.Meta.Float("f_end")
	assert.InDelta(t, 2000.0, fEnd, 0)
	clipped, _ := rec.Meta.Extra["clipped"].Bool()
	assert.False(t, clipped)
	peak, _ := rec.Meta.Float("peak_voltage")
	assert.InDelta(t, 10000.0/65535*3.3, peak, 0.01)
}

func TestSweepTransferDeadline(t *testing.T) {
	cfg := testConfig(t)
	opts := shortSweep()
	opts.Sweep.Duration = 0.01
	opts.Grace = 0

	// a player that never finishes is cut off by the deadline
	res, err := experiment.NewRunner(cfg, toneDevice().Opener(), &fakePlayer{activeFor: math.MaxInt}).
		SweepTransfer(context.Background(), opts)
	require.NoError(t, err)
	assert.Positive(t, res.Frames)
}

func TestSweepTransferErrors(t *testing.T) {
	cfg := testConfig(t)

	opts := shortSweep()
	opts.Sweep.End = 50
	_, err := experiment.NewRunner(cfg, toneDevice().Opener(), &fakePlayer{}).SweepTransfer(context.Background(), opts)
	require.ErrorIs(t, err, stimulus.ErrFrequencyOrder)

	boom := errors.New("no audio device")
	dev := toneDevice()
	_, err = experiment.NewRunner(cfg, dev.Opener(), &fakePlayer{startErr: boom}).SweepTransfer(context.Background(), shortSweep())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, dev.Closes(), "session released on player failure")

	_, err = experiment.NewRunner(cfg, toneDevice(daqtest.WithWriteError(boom)).Opener(), &fakePlayer{activeFor: 3}).
		SweepTransfer(context.Background(), shortSweep())
	require.ErrorIs(t, err, daq.ErrTransport)
}

func TestSteadyTransfer(t *testing.T) {
	cfg := testConfig(t)
	player := &fakePlayer{activeFor: math.MaxInt}
	r := experiment.NewRunner(cfg, toneDevice().Opener(), player)

	opts := experiment.DefaultSteadyOptions()
	opts.Settle = 0
	opts.Shape = stimulus.Square
	res, err := r.SteadyTransfer(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, player.fileSeen)
	assert.Equal(t, 1, player.stops)
	assert.Equal(t, cfg.Paths.BurstDir(), filepath.Dir(res.Path))

	want := cfg.Acquisition.SampleRate / tonePeriod
	assert.InDelta(t, want, res.Dominant, cfg.Acquisition.SampleRate/testBurst)

	rec, err := archive.Load(res.Path)
	require.NoError(t, err)
	assert.Equal(t, signal.KindVoltage, rec.Signal.Kind())
	assert.Equal(t, testBurst, rec.Signal.Len())
	shape, _ := rec.Meta.Extra["shape"].Str()
	assert.Equal(t, "square", shape)
	measured, _ := rec.Meta.Float("measured_freq")
	assert.InDelta(t, res.Dominant, measured, 0)
}

func TestSteadyTransferCancelledDuringSettle(t *testing.T) {
	cfg := testConfig(t)
	player := &fakePlayer{activeFor: math.MaxInt}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := experiment.NewRunner(cfg, toneDevice().Opener(), player).SteadyTransfer(ctx, experiment.DefaultSteadyOptions())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, player.stops)
}

func TestInstrumentClip(t *testing.T) {
	cfg := testConfig(t)
	res, err := experiment.NewRunner(cfg, toneDevice().Opener(), &fakePlayer{}).
		InstrumentClip(context.Background(), "bass_open_a", "")
	require.NoError(t, err)

	assert.Contains(t, filepath.Base(res.Path), "bass_open_a_")
	rec, err := archive.Load(res.Path)
	require.NoError(t, err)
	dom, ok := rec.Meta.Float("dominant_freq")
	require.True(t, ok)
	assert.InDelta(t, cfg.Acquisition.SampleRate/tonePeriod, dom, cfg.Acquisition.SampleRate/testBurst)

	_, err = experiment.NewRunner(cfg, toneDevice(daqtest.WithBurstShortBy(1)).Opener(), &fakePlayer{}).
		InstrumentClip(context.Background(), "x", "")
	require.ErrorIs(t, err, daq.ErrIncompleteRead)
}

func TestContinuousStream(t *testing.T) {
	cfg := testConfig(t)
	dev := toneDevice()
	res, err := experiment.NewRunner(cfg, dev.Opener(), &fakePlayer{}).
		ContinuousStream(context.Background(), experiment.ContinuousOptions{Prefix: "session", MaxFrames: 250})
	require.NoError(t, err)
	assert.Equal(t, 250, res.Frames)

	rec, err := archive.Load(res.Path)
	require.NoError(t, err)
	raw, err := rec.Signal.Raw()
	require.NoError(t, err)
	assert.Equal(t, dev.Expected(0, 250*testLive), raw)
	assert.Empty(t, rec.Meta.Extra)
}

func TestContinuousStreamCancelledBeforeData(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := experiment.NewRunner(cfg, toneDevice().Opener(), &fakePlayer{}).
		ContinuousStream(ctx, experiment.ContinuousOptions{Prefix: "session"})
	require.ErrorIs(t, err, experiment.ErrNoData)
}
