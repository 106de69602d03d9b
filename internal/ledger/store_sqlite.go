package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// SQLiteStore implements Store on a SQLite database. Unlike the CSV backend
// it inserts one row per append; the synchronous write gives the same
// durable-before-return guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite ledger store, creating the usage table if
// it doesn't exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// identity is stored as decimal text: it is an unsigned 64-bit hash and
	// SQLite integers are signed.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			is_group INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			prompt TEXT NOT NULL,
			size INTEGER NOT NULL,
			identity TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_usage_identity ON usage(identity)",
		"CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all records in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT is_group, timestamp, prompt, size, identity FROM usage ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query usage table: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			ts       string
			identity string
		)
		if err := rows.Scan(&rec.IsGroup, &ts, &rec.Prompt, &rec.Size, &identity); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		rec.Identity, err = strconv.ParseUint(identity, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad identity %q: %w", identity, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage rows: %w", err)
	}
	return records, nil
}

// Append inserts rec as a single row.
func (s *SQLiteStore) Append(ctx context.Context, rec Record, _ []Record) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO usage (is_group, timestamp, prompt, size, identity) VALUES (?, ?, ?, ?, ?)",
		rec.IsGroup,
		rec.Timestamp.Format(time.RFC3339),
		rec.Prompt,
		rec.Size,
		strconv.FormatUint(rec.Identity, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage row: %w", err)
	}
	return nil
}

// Close is a no-op; the DB connection is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
