package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-scope/internal/signal"
)

func TestCatalogIndexListLatest(t *testing.T) {
	dir := t.TempDir()
	sig, err := signal.NewVoltage([]float64{0.1, 0.2, 0.3}, 1000)
	require.NoError(t, err)

	_, err = save(dir, "clip", sig, map[string]Value{"dominant_freq": FloatValue(82.4)}, testTime)
	require.NoError(t, err)
	newest, err := save(dir, "clip", sig, nil, testTime.Add(time.Hour))
	require.NoError(t, err)
	_, err = save(dir, "sweep_log", sig, nil, testTime.Add(2*time.Hour))
	require.NoError(t, err)

	cat, err := OpenCatalog(filepath.Join(dir, "db", "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	n, err := cat.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// re-indexing updates rows in place
	n, err = cat.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := cat.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Meta.Timestamp.Equal(testTime))
	assert.Equal(t, "82.4 Hz", all[0].Meta.Display()["dominant_freq"])
	assert.Equal(t, signal.KindVoltage, all[0].Meta.Kind)
	assert.Equal(t, int64(3), all[0].Samples)
	assert.NotEmpty(t, all[0].Meta.ID)

	latest, err := cat.Latest("clip")
	require.NoError(t, err)
	assert.Equal(t, newest, latest.Path)

	latest, err = cat.Latest("sweep_log")
	require.NoError(t, err)
	assert.Equal(t, "sweep_log_20240309_160507.parquet", latest.Name)

	_, err = cat.Latest("steady")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPrefixOf(t *testing.T) {
	tests := map[string]string{
		"clip_20240309_140507.parquet":      "clip",
		"sweep_log_20240309_140507.parquet": "sweep_log",
		"legacy.parquet":                    "legacy",
		"x_2024_140507.parquet":             "x_2024_140507",
	}
	for name, want := range tests {
		assert.Equal(t, want, prefixOf(name), name)
	}
}
