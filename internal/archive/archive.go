// Package archive stores captured signals as compressed parquet files carrying
// key/value metadata, and indexes them in a sqlite catalog.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/segmentio/parquet-go"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/signal"
)

const (
	// FileExt is the archive file extension.
	FileExt = ".parquet"

	fileTimeLayout = "20060102_150405"

	keyRate      = "fs"
	keyKind      = "kind"
	keyTimestamp = "timestamp"
	keyID        = "id"
	keyExtraPfx  = "meta."

	columnSignal = "signal"
	columnLegacy = "data"
)

var (
	// ErrNotFound is returned when no archive matches.
	ErrNotFound = fmt.Errorf("archive not found: %w", fs.ErrNotExist)
	// ErrNoSignal is returned for a parquet file with neither a signal nor a data column.
	ErrNoSignal = errors.New("archive has no signal column")
)

type voltageRow struct {
	Signal float64 `parquet:"signal"`
}

type rawRow struct {
	Signal int32 `parquet:"signal"`
}

type legacyRow struct {
	Data float64 `parquet:"data"`
}

// Record is a loaded archive.
type Record struct {
	Path   string
	Signal signal.Signal
	Meta   Metadata
}

// FileName builds the timestamped file name used by Save.
func FileName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(fileTimeLayout) + FileExt
}

// Save writes sig with its extra metadata into dir as prefix_YYYYMMDD_HHMMSS.parquet.
// A timestamp and a fresh capture id are added automatically.
func Save(dir, prefix string, sig signal.Signal, extra map[string]Value) (string, error) {
	return save(dir, prefix, sig, extra, time.Now())
}

func save(dir, prefix string, sig signal.Signal, extra map[string]Value, now time.Time) (string, error) {
	if sig.Len() == 0 {
		return "", signal.ErrEmpty
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}

	path := filepath.Join(dir, FileName(prefix, now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	opts := []parquet.WriterOption{
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(keyRate, strconv.FormatFloat(sig.Rate(), 'g', -1, 64)),
		parquet.KeyValueMetadata(keyKind, sig.Kind().String()),
		parquet.KeyValueMetadata(keyTimestamp, now.Format(time.RFC3339Nano)),
		parquet.KeyValueMetadata(keyID, uuid.NewString()),
	}
	for k, v := range extra {
		opts = append(opts, parquet.KeyValueMetadata(keyExtraPfx+k, v.encode()))
	}

	if err := writeSignal(f, sig, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write archive %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	glog.V(1).Infof("archive: saved %s (%d samples, %d metadata keys)", path, sig.Len(), len(extra)+4)
	return path, nil
}

func writeSignal(w io.Writer, sig signal.Signal, opts []parquet.WriterOption) error {
	if sig.Kind() == signal.KindRaw {
		raw, err := sig.Raw()
		if err != nil {
			return err
		}
		rows := make([]rawRow, len(raw))
		for i, v := range raw {
			rows[i].Signal = int32(v)
		}
		return writeRows(w, rows, opts)
	}

	volts, err := sig.Voltages()
	if err != nil {
		return err
	}
	rows := make([]voltageRow, len(volts))
	for i, v := range volts {
		rows[i].Signal = v
	}
	return writeRows(w, rows, opts)
}

func writeRows[T any](w io.Writer, rows []T, opts []parquet.WriterOption) error {
	pw := parquet.NewGenericWriter[T](w, opts...)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return err
	}
	return pw.Close()
}

// Load reads an archive written by Save, or a legacy file with a float "data"
// column and no rate, which is assumed to be config.LegacySampleRate.
func Load(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Record{}, err
	}
	defer f.Close()

	pf, meta, err := openMeta(f)
	if err != nil {
		return Record{}, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	sig, err := readSignal(f, pf, meta)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	return Record{Path: path, Signal: sig, Meta: meta}, nil
}

func openMeta(f *os.File) (*parquet.File, Metadata, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, Metadata{}, err
	}
	meta, err := parseMeta(pf.Lookup)
	return pf, meta, err
}

func parseMeta(lookup func(string) (string, bool)) (Metadata, error) {
	meta := Metadata{Rate: config.LegacySampleRate, Kind: signal.KindVoltage, Extra: map[string]Value{}}

	fsText, hasRate := lookup(keyRate)
	kindText, hasKind := lookup(keyKind)
	meta.Legacy = !hasRate || !hasKind

	if hasRate {
		rate, err := strconv.ParseFloat(fsText, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("bad fs %q: %w", fsText, err)
		}
		meta.Rate = rate
	}
	if hasKind {
		k, err := signal.ParseKind(kindText)
		if err != nil {
			return Metadata{}, err
		}
		meta.Kind = k
	}
	if ts, ok := lookup(keyTimestamp); ok {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Metadata{}, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		meta.Timestamp = t
	}
	meta.ID, _ = lookup(keyID)
	return meta, nil
}

// readSignal loads the sample column. Extra metadata keys are read here because
// the reader only exposes them through the file's key/value list.
func readSignal(f *os.File, pf *parquet.File, meta Metadata) (signal.Signal, error) {
	if err := readExtra(pf, meta.Extra); err != nil {
		return signal.Signal{}, err
	}

	if _, ok := pf.Schema().Lookup(columnSignal); !ok {
		if _, ok := pf.Schema().Lookup(columnLegacy); !ok {
			return signal.Signal{}, ErrNoSignal
		}
		rows, err := readRows[legacyRow](f)
		if err != nil {
			return signal.Signal{}, err
		}
		volts := make([]float64, len(rows))
		for i, r := range rows {
			volts[i] = r.Data
		}
		return signal.NewVoltage(volts, meta.Rate)
	}

	if meta.Kind == signal.KindRaw {
		rows, err := readRows[rawRow](f)
		if err != nil {
			return signal.Signal{}, err
		}
		raw := make([]uint16, len(rows))
		for i, r := range rows {
			raw[i] = uint16(r.Signal)
		}
		return signal.NewRaw(raw, meta.Rate)
	}

	rows, err := readRows[voltageRow](f)
	if err != nil {
		return signal.Signal{}, err
	}
	volts := make([]float64, len(rows))
	for i, r := range rows {
		volts[i] = r.Signal
	}
	return signal.NewVoltage(volts, meta.Rate)
}

func readExtra(pf *parquet.File, extra map[string]Value) error {
	for _, kv := range pf.Metadata().KeyValueMetadata {
		name, ok := strings.CutPrefix(kv.Key, keyExtraPfx)
		if !ok {
			continue
		}
		v, err := decodeValue(kv.Value)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", name, err)
		}
		extra[name] = v
	}
	return nil
}

func readRows[T any](f *os.File) ([]T, error) {
	r := parquet.NewGenericReader[T](f)
	defer r.Close()

	rows := make([]T, r.NumRows())
	read := 0
	for read < len(rows) {
		n, err := r.Read(rows[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return rows[:read], nil
}

// LoadLatest loads the most recently modified file in dir matching pattern
// (for example "sweep_*.parquet").
func LoadLatest(dir, pattern string) (Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return Record{}, err
	}

	var (
		latest string
		newest time.Time
	)
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		if latest == "" || st.ModTime().After(newest) {
			latest, newest = m, st.ModTime()
		}
	}
	if latest == "" {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, filepath.Join(dir, pattern))
	}

	glog.Infof("archive: loading %s", filepath.Base(latest))
	return Load(latest)
}

// Entry is the metadata of one archive found by Scan.
type Entry struct {
	Path    string
	Name    string
	Samples int64
	Meta    Metadata
}

// Scan walks dir recursively and returns the metadata of every archive, sorted
// by path. Unreadable files are logged and skipped.
func Scan(dir string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != FileExt {
			return nil
		}
		e, err := scanFile(path)
		if err != nil {
			glog.Warningf("archive: skipping %s: %v", path, err)
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func scanFile(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	pf, meta, err := openMeta(f)
	if err != nil {
		return Entry{}, err
	}
	if err := readExtra(pf, meta.Extra); err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:    path,
		Name:    filepath.Base(path),
		Samples: pf.NumRows(),
		Meta:    meta,
	}, nil
}
