package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usageCollection = "usage"

// mongoRecord is the BSON shape of a ledger record. identity is stored as
// decimal text for the same signedness reason as the SQL backends.
type mongoRecord struct {
	IsGroup   bool      `bson:"is_group"`
	Timestamp time.Time `bson:"timestamp"`
	Prompt    string    `bson:"prompt"`
	Size      int       `bson:"size"`
	Identity  string    `bson:"identity"`
}

// MongoDBStore implements Store on a MongoDB database.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates a MongoDB ledger store and ensures indexes.
func NewMongoDBStore(db *mongo.Database) (*MongoDBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	coll := db.Collection(usageCollection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "identity", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(context.Background(), indexes); err != nil {
		slog.Warn("failed to create indexes", "error", err)
	}

	return &MongoDBStore{collection: coll}, nil
}

// Load reads all records in insertion order (ObjectID order).
func (s *MongoDBStore) Load(ctx context.Context) ([]Record, error) {
	cursor, err := s.collection.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage collection: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var records []Record
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode usage document: %w", err)
		}
		identity, err := strconv.ParseUint(doc.Identity, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad identity %q: %w", doc.Identity, err)
		}
		records = append(records, Record{
			IsGroup:   doc.IsGroup,
			Timestamp: doc.Timestamp.UTC(),
			Prompt:    doc.Prompt,
			Size:      doc.Size,
			Identity:  identity,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage documents: %w", err)
	}
	return records, nil
}

// Append inserts rec as a single document with majority write concern.
func (s *MongoDBStore) Append(ctx context.Context, rec Record, _ []Record) error {
	doc := mongoRecord{
		IsGroup:   rec.IsGroup,
		Timestamp: rec.Timestamp.UTC(),
		Prompt:    rec.Prompt,
		Size:      rec.Size,
		Identity:  strconv.FormatUint(rec.Identity, 10),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert usage document: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
