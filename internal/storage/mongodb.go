package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoStorage implements Storage for MongoDB
type mongoStorage struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB creates a new MongoDB storage connection.
func NewMongoDB(ctx context.Context, cfg MongoDBConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "imagebot"
	}

	clientOpts := options.Client().ApplyURI(cfg.URL)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &mongoStorage{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

func (s *mongoStorage) Type() string {
	return TypeMongoDB
}

func (s *mongoStorage) SQLiteDB() *sql.DB {
	return nil
}

func (s *mongoStorage) PostgreSQLPool() interface{} {
	return nil
}

func (s *mongoStorage) MongoDatabase() interface{} {
	return s.database
}

func (s *mongoStorage) Close() error {
	if s.client != nil {
		return s.client.Disconnect(context.Background())
	}
	return nil
}
