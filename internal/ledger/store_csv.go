package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// csvColumns is the header of the durable ledger file, one row per accepted
// request. Timestamps are RFC 3339 with second precision.
var csvColumns = []string{"is_group", "timestamp", "prompt", "size", "identity"}

// CSVStore persists the ledger as a flat CSV file, rewriting the whole file
// on every append. The rewrite is done via a temp file, fsync and rename, so
// a successful Append is durable and the file is never observed half-written.
// This trades write efficiency for simplicity; fine at a few requests per
// user per day.
type CSVStore struct {
	path string
}

// NewCSVStore creates a CSV-backed ledger store at path, creating the parent
// directory if needed.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("csv ledger path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &CSVStore{path: path}, nil
}

// Load reads all records from the file. A missing, unreadable or corrupt file
// starts the ledger empty rather than blocking startup.
func (s *CSVStore) Load(_ context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ledger file unreadable, starting empty", "path", s.path, "error", err)
		}
		return nil, nil
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		slog.Warn("ledger file corrupt, starting empty", "path", s.path, "error", err)
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Skip the header row
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseCSVRow(row)
		if err != nil {
			slog.Warn("ledger row unparseable, starting empty", "path", s.path, "row", i+2, "error", err)
			return nil, nil
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append rewrites the entire ledger including rec.
func (s *CSVStore) Append(_ context.Context, _ Record, all []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	// Best-effort cleanup on any failure path below
	defer func() {
		_ = os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(csvColumns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, rec := range all {
		if err := w.Write(formatCSVRow(rec)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush ledger: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only held open during Load and Append.
func (s *CSVStore) Close() error {
	return nil
}

func formatCSVRow(rec Record) []string {
	return []string{
		strconv.FormatBool(rec.IsGroup),
		rec.Timestamp.Format(time.RFC3339),
		rec.Prompt,
		strconv.Itoa(rec.Size),
		strconv.FormatUint(rec.Identity, 10),
	}
}

func parseCSVRow(row []string) (Record, error) {
	if len(row) != len(csvColumns) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(csvColumns), len(row))
	}

	isGroup, err := strconv.ParseBool(row[0])
	if err != nil {
		return Record{}, fmt.Errorf("bad is_group %q: %w", row[0], err)
	}
	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp %q: %w", row[1], err)
	}
	size, err := strconv.Atoi(row[3])
	if err != nil {
		return Record{}, fmt.Errorf("bad size %q: %w", row[3], err)
	}
	identity, err := strconv.ParseUint(row[4], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad identity %q: %w", row[4], err)
	}

	return Record{
		IsGroup:   isGroup,
		Timestamp: ts,
		Prompt:    row[2],
		Size:      size,
		Identity:  identity,
	}, nil
}
