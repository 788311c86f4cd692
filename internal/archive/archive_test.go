package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/signal"
)

var testTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestSaveLoadVoltage(t *testing.T) {
	dir := t.TempDir()
	sig, err := signal.NewVoltage([]float64{1.65, 1.7, -0.25, 3.3}, 97793.1)
	require.NoError(t, err)

	extra := map[string]Value{
		"dominant_freq": FloatValue(440.25),
		"clipped":       BoolValue(false),
		"user_notes":    StringValue("bass: open A"),
	}
	path, err := save(dir, "clip", sig, extra, testTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip_20240309_140507.parquet"), path)

	rec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, signal.KindVoltage, rec.Signal.Kind())
	assert.InDelta(t, 97793.1, rec.Signal.Rate(), 0)
	volts, err := rec.Signal.Voltages()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.65, 1.7, -0.25, 3.3}, volts)

	assert.False(t, rec.Meta.Legacy)
	assert.True(t, rec.Meta.Timestamp.Equal(testTime))
	_, err = uuid.Parse(rec.Meta.ID)
	require.NoError(t, err, "id must be a uuid")
	assert.Equal(t, extra, rec.Meta.Extra)
}

func TestSaveLoadRaw(t *testing.T) {
	dir := t.TempDir()
	raw := []uint16{0, 1, 32768, 65535}
	sig, err := signal.NewRaw(raw, 48000)
	require.NoError(t, err)

	path, err := save(dir, "sweep", sig, map[string]Value{"v_max": FloatValue(3.1)}, testTime)
	require.NoError(t, err)

	rec, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, signal.KindRaw, rec.Signal.Kind())
	got, err := rec.Signal.Raw()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	v, ok := rec.Meta.Float("v_max")
	assert.True(t, ok)
	assert.InDelta(t, 3.1, v, 0)
}

func TestLoadLegacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeRows(f, []legacyRow{{1}, {2}, {3}}, nil))
	require.NoError(t, f.Close())

	rec, err := Load(path)
	require.NoError(t, err)
	assert.True(t, rec.Meta.Legacy)
	assert.InDelta(t, config.LegacySampleRate, rec.Signal.Rate(), 0)
	assert.Equal(t, []float64{1, 2, 3}, rec.Signal.Float64s())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.parquet"))
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, os.ErrNotExist)

	type other struct {
		X float64 `parquet:"x"`
	}
	path := filepath.Join(dir, "other.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeRows(f, []other{{1}}, []parquet.WriterOption{parquet.KeyValueMetadata(keyRate, "1000")}))
	require.NoError(t, f.Close())
	_, err = Load(path)
	require.ErrorIs(t, err, ErrNoSignal)

	_, err = Save(dir, "empty", signal.Signal{}, nil)
	require.ErrorIs(t, err, signal.ErrEmpty)
}

func TestLoadLatestAndScan(t *testing.T) {
	dir := t.TempDir()
	sig, err := signal.NewVoltage([]float64{1, 2}, 1000)
	require.NoError(t, err)

	old, err := save(dir, "steady", sig, nil, testTime)
	require.NoError(t, err)
	newer, err := save(dir, "steady", sig, map[string]Value{"freq": FloatValue(1000)}, testTime.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(old, testTime, testTime))
	require.NoError(t, os.Chtimes(newer, testTime.Add(time.Hour), testTime.Add(time.Hour)))

	sub := filepath.Join(dir, "burst")
	_, err = save(sub, "clip", sig, nil, testTime)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.parquet"), []byte("nope"), 0o644))

	rec, err := LoadLatest(dir, "steady_*.parquet")
	require.NoError(t, err)
	assert.Equal(t, newer, rec.Path)

	_, err = LoadLatest(dir, "sweep_*.parquet")
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3, "junk file is skipped")
	assert.Equal(t, "clip_20240309_140507.parquet", entries[0].Name)
	assert.Equal(t, int64(2), entries[1].Samples)
	assert.Contains(t, entries[2].Meta.Extra, "freq")

	_, err = Scan(filepath.Join(dir, "nowhere"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValueEncoding(t *testing.T) {
	for _, v := range []Value{FloatValue(-1.5e-7), StringValue("a:b"), BoolValue(true), StringValue("")} {
		got, err := decodeValue(v.encode())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, bad := range []string{"nocolon", "f:abc", "b:maybe", "x:1"} {
		_, err := decodeValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestMetadataDisplay(t *testing.T) {
	m := Metadata{
		Rate: 97793.1,
		Extra: map[string]Value{
			"dominant_freq": FloatValue(440.26),
			"peak_voltage":  FloatValue(1.23456),
			"clipped":       BoolValue(true),
			"shape":         StringValue("sine"),
		},
	}
	assert.Equal(t, map[string]string{
		"fs":            "97793",
		"dominant_freq": "440.3 Hz",
		"peak_voltage":  "1.235 V",
		"clipped":       "true",
		"shape":         "sine",
	}, m.Display())
}
