package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store on a PostgreSQL pool.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a PostgreSQL ledger store, creating the usage
// table if it doesn't exist.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	ctx := context.Background()

	// identity is stored as decimal text: it is an unsigned 64-bit hash and
	// BIGINT is signed.
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS usage (
			id BIGSERIAL PRIMARY KEY,
			is_group BOOLEAN NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
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
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Load reads all records in insertion order.
func (s *PostgreSQLStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT is_group, timestamp, prompt, size, identity FROM usage ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query usage table: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			ts       time.Time
			identity string
		)
		if err := rows.Scan(&rec.IsGroup, &ts, &rec.Prompt, &rec.Size, &identity); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		rec.Timestamp = ts.UTC()
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
func (s *PostgreSQLStore) Append(ctx context.Context, rec Record, _ []Record) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO usage (is_group, timestamp, prompt, size, identity) VALUES ($1, $2, $3, $4, $5)",
		rec.IsGroup,
		rec.Timestamp.UTC(),
		rec.Prompt,
		rec.Size,
		strconv.FormatUint(rec.Identity, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage row: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
