package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"imagebot/internal/storage"
)

// BackendCSV is the default, flat-file ledger backend.
const BackendCSV = "csv"

// Config selects and configures the ledger backend.
type Config struct {
	// Backend is "csv" (default), "sqlite", "postgresql", or "mongodb".
	Backend string

	// CSVPath is the ledger file path for the CSV backend
	// (default: logs/imagebot_usage.csv).
	CSVPath string

	// Storage configures the database backends.
	Storage storage.Config
}

// DefaultConfig returns a Config with the CSV backend.
func DefaultConfig() Config {
	return Config{
		Backend: BackendCSV,
		CSVPath: "logs/imagebot_usage.csv",
		Storage: storage.DefaultConfig(),
	}
}

// Result holds the initialized ledger and its dependencies.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Ledger  *Ledger
	Storage storage.Storage
}

// Close releases all resources held by the ledger.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Ledger != nil {
		if err := r.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.Storage = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// Open creates the configured ledger backend and loads all prior records.
// The caller must call Result.Close() during shutdown.
func Open(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Backend == "" || cfg.Backend == BackendCSV {
		path := cfg.CSVPath
		if path == "" {
			path = "logs/imagebot_usage.csv"
		}
		store, err := NewCSVStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create csv store: %w", err)
		}
		l, err := New(ctx, store)
		if err != nil {
			return nil, err
		}
		return &Result{Ledger: l}, nil
	}

	storageCfg := cfg.Storage
	storageCfg.Type = cfg.Backend
	st, err := storage.New(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	store, err := createStore(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	l, err := New(ctx, store)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Result{Ledger: l, Storage: st}, nil
}

// createStore creates the appropriate Store for the given storage backend.
func createStore(st storage.Storage) (Store, error) {
	switch st.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB())

	case storage.TypePostgreSQL:
		pool := st.PostgreSQLPool()
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL pool is nil")
		}
		pgxPool, ok := pool.(*pgxpool.Pool)
		if !ok {
			return nil, fmt.Errorf("invalid PostgreSQL pool type: %T", pool)
		}
		return NewPostgreSQLStore(pgxPool)

	case storage.TypeMongoDB:
		db := st.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		mongoDB, ok := db.(*mongo.Database)
		if !ok {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", db)
		}
		return NewMongoDBStore(mongoDB)

	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", st.Type())
	}
}
