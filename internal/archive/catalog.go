package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tphakala/go-scope/internal/signal"
)

const (
	catalogCreateTmpl = `CREATE TABLE IF NOT EXISTS captures (
		"Path"       TEXT NOT NULL PRIMARY KEY,
		"ID"         TEXT,
		"Name"       TEXT NOT NULL,
		"Prefix"     TEXT NOT NULL,
		"Kind"       TEXT NOT NULL,
		"Rate"       REAL,
		"Legacy"     INTEGER,
		"Captured"   INTEGER,
		"Samples"    INTEGER,
		"Extra"      TEXT
	);`
	catalogUpsertTmpl = `INSERT INTO captures(
		Path,
		ID,
		Name,
		Prefix,
		Kind,
		Rate,
		Legacy,
		Captured,
		Samples,
		Extra
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(Path) DO UPDATE SET
		ID = excluded.ID,
		Name = excluded.Name,
		Prefix = excluded.Prefix,
		Kind = excluded.Kind,
		Rate = excluded.Rate,
		Legacy = excluded.Legacy,
		Captured = excluded.Captured,
		Samples = excluded.Samples,
		Extra = excluded.Extra;`
	catalogSelectTmpl = `SELECT Path, ID, Name, Kind, Rate, Legacy, Captured, Samples, Extra FROM captures`
	catalogOrder      = ` ORDER BY Captured, Path`
)

// Catalog is a sqlite index over an archive directory.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if needed) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %w", path, err)
	}
	if _, err := db.Exec(catalogCreateTmpl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to create table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Index scans dir and records every archive, replacing stale rows for the same
// path. It returns the number of archives indexed.
func (c *Catalog) Index(dir string) (int, error) {
	entries, err := Scan(dir)
	if err != nil {
		return 0, err
	}

	stmt, err := c.db.Prepare(catalogUpsertTmpl)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	indexed := 0
	for _, e := range entries {
		extra, err := encodeExtra(e.Meta.Extra)
		if err != nil {
			glog.Warningf("catalog: %s: %v", e.Path, err)
			continue
		}
		var captured int64
		if !e.Meta.Timestamp.IsZero() {
			captured = e.Meta.Timestamp.UnixMilli()
		}
		if _, err := stmt.Exec(e.Path, e.Meta.ID, e.Name, prefixOf(e.Name), e.Meta.Kind.String(),
			e.Meta.Rate, e.Meta.Legacy, captured, e.Samples, extra); err != nil {
			glog.Warningf("error storing in sqlite DB: %s", err)
			continue
		}
		indexed++
		glog.V(2).Infof("catalog: indexed %s", e.Path)
	}
	glog.Infof("catalog: indexed %d of %d archives in %s", indexed, len(entries), dir)
	return indexed, nil
}

// List returns every catalogued archive, oldest first.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(catalogSelectTmpl + catalogOrder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Latest returns the newest archive whose file name starts with prefix.
func (c *Catalog) Latest(prefix string) (Entry, error) {
	row := c.db.QueryRow(catalogSelectTmpl+` WHERE Prefix = ?`+` ORDER BY Captured DESC, Path DESC LIMIT 1`, prefix)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: no %q captures in catalog", ErrNotFound, prefix)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		kind     string
		captured int64
		extra    string
	)
	if err := s.Scan(&e.Path, &e.Meta.ID, &e.Name, &kind, &e.Meta.Rate, &e.Meta.Legacy, &captured, &e.Samples, &extra); err != nil {
		return Entry{}, err
	}
	k, err := signal.ParseKind(kind)
	if err != nil {
		return Entry{}, err
	}
	e.Meta.Kind = k
	if captured != 0 {
		e.Meta.Timestamp = time.UnixMilli(captured)
	}
	if e.Meta.Extra, err = decodeExtra(extra); err != nil {
		return Entry{}, fmt.Errorf("catalog row %s: %w", e.Path, err)
	}
	return e, nil
}

func encodeExtra(extra map[string]Value) (string, error) {
	enc := make(map[string]string, len(extra))
	for k, v := range extra {
		enc[k] = v.encode()
	}
	b, err := json.Marshal(enc)
	return string(b), err
}

func decodeExtra(s string) (map[string]Value, error) {
	out := map[string]Value{}
	if s == "" {
		return out, nil
	}
	var enc map[string]string
	if err := json.Unmarshal([]byte(s), &enc); err != nil {
		return nil, err
	}
	for k, raw := range enc {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// prefixOf strips the _YYYYMMDD_HHMMSS.parquet suffix added by FileName.
func prefixOf(name string) string {
	base := strings.TrimSuffix(name, FileExt)
	suffix := len(fileTimeLayout) + 1
	if len(base) <= suffix || base[len(base)-suffix] != '_' {
		return base
	}
	if _, err := time.Parse(fileTimeLayout, base[len(base)-suffix+1:]); err != nil {
		return base
	}
	return base[:len(base)-suffix]
}
