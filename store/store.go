// Package store owns the durable price artifact: a human-inspectable CSV
// keyed by (symbol, effective date).
//
// The store is loaded before each run, merged in memory, and rewritten in
// full on flush. Nothing else mutates the backing file.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/hazyhaar/fundwatch/scrape"
)

// header is the artifact's first row. Column order is part of the file
// contract; readers elsewhere depend on it.
var header = []string{"EffectiveDate", "Price", "FundName", "Symbol", "Currency"}

// Store is the in-memory working copy of the price artifact.
type Store struct {
	path    string
	logger  *slog.Logger
	records []scrape.Record
	index   map[scrape.Key]int
}

// Open loads the artifact at path. A missing file yields an empty store;
// any other read problem is a persistence failure.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger,
		index:  make(map[scrape.Key]int),
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("store: no artifact yet, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	if err := s.load(f); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(f *os.File) error {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read header of %s: %w", s.path, err)
	}
	if !equalHeader(first) {
		s.logger.Warn("store: unexpected header, continuing",
			"path", s.path, "found", first)
	}

	line := 1
	for {
		line++
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("store: read %s: %w", s.path, err)
		}

		rec, err := parseRow(row)
		if err != nil {
			// A single bad row does not invalidate the artifact.
			s.logger.Warn("store: skipping invalid row",
				"path", s.path, "line", line, "error", err)
			continue
		}
		if _, dup := s.index[rec.Key()]; dup {
			s.logger.Warn("store: skipping duplicate row",
				"path", s.path, "line", line, "symbol", rec.Symbol)
			continue
		}
		s.index[rec.Key()] = len(s.records)
		s.records = append(s.records, rec)
	}
	return nil
}

// Append merges new records into the store. A record whose (symbol, date)
// key already exists is skipped, never overwritten: re-running the job on
// the same day is a no-op, and the first observed value stays authoritative.
// Returns the number of records actually added.
func (s *Store) Append(records []scrape.Record) int {
	added := 0
	for _, rec := range records {
		key := rec.Key()
		if _, exists := s.index[key]; exists {
			s.logger.Debug("store: key already present, keeping existing row",
				"symbol", key.Symbol, "date", key.Date)
			continue
		}
		s.index[key] = len(s.records)
		s.records = append(s.records, rec)
		added++
	}
	return added
}

// Prune discards records strictly older than retentionDays before ref.
// Zero or negative retention keeps everything. Returns the number removed.
func (s *Store) Prune(retentionDays int, ref time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := ref.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -retentionDays)

	kept := s.records[:0]
	removed := 0
	for _, rec := range s.records {
		if rec.EffectiveDate.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0
	}
	s.records = kept
	s.index = make(map[scrape.Key]int, len(kept))
	for i, rec := range kept {
		s.index[rec.Key()] = i
	}
	return removed
}

// Flush rewrites the artifact from the in-memory records, sorted by symbol
// then date for readability. The write goes to a temporary file in the same
// directory which then replaces the artifact, so a crash mid-write leaves
// the previous valid file intact.
func (s *Store) Flush() error {
	rows := make([]scrape.Record, len(s.records))
	copy(rows, s.records)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].EffectiveDate.Before(rows[j].EffectiveDate)
	})

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("store: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write header: %w", err)
	}
	for _, rec := range rows {
		row := []string{
			rec.EffectiveDate.Format(scrape.DateLayout),
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			rec.Name,
			rec.Symbol,
			rec.Currency,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: flush rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}
	s.logger.Info("store: artifact written", "path", s.path, "rows", len(rows))
	return nil
}

// Len returns the number of records currently held.
func (s *Store) Len() int { return len(s.records) }

// Records returns a copy of the in-memory records, in insertion order.
func (s *Store) Records() []scrape.Record {
	out := make([]scrape.Record, len(s.records))
	copy(out, s.records)
	return out
}

func equalHeader(row []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i := range header {
		if row[i] != header[i] {
			return false
		}
	}
	return true
}

func parseRow(row []string) (scrape.Record, error) {
	if len(row) != len(header) {
		return scrape.Record{}, fmt.Errorf("want %d columns, got %d", len(header), len(row))
	}
	date, err := time.ParseInLocation(scrape.DateLayout, row[0], time.UTC)
	if err != nil {
		return scrape.Record{}, fmt.Errorf("bad date %q: %w", row[0], err)
	}
	price, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return scrape.Record{}, fmt.Errorf("bad price %q: %w", row[1], err)
	}
	if price <= 0 {
		return scrape.Record{}, fmt.Errorf("price not positive: %v", price)
	}
	if row[3] == "" {
		return scrape.Record{}, fmt.Errorf("empty symbol")
	}
	return scrape.Record{
		EffectiveDate: date,
		Price:         price,
		Name:          row[2],
		Symbol:        row[3],
		Currency:      row[4],
	}, nil
}
