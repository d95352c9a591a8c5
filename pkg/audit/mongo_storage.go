package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "audit_log"

// MongoStorage persists audit entries in a MongoDB collection. An
// append-only document collection is a natural fit for the trail: writes
// are inserts only, and reads are indexed scans ordered by creation time.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a Storage backed by the given database. An index
// on (entity_type, entity_id, created_at) is expected to exist; see
// EnsureIndexes.
func NewMongoStorage(db *mongo.Database, collection string) *MongoStorage {
	if db == nil {
		panic("audit: mongo database cannot be nil")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStorage{coll: db.Collection(collection)}
}

// EnsureIndexes creates the indexes the query path relies on. Idempotent;
// call it once at startup.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "entity_type", Value: 1},
			{Key: "entity_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	return nil
}

type mongoEntry struct {
	ID         string    `bson:"_id"`
	EntityType string    `bson:"entity_type"`
	EntityID   string    `bson:"entity_id"`
	Action     string    `bson:"action"`
	Actor      string    `bson:"actor"`
	Changes    Changes   `bson:"changes,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Append validates and inserts a single entry.
func (s *MongoStorage) Append(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	doc := mongoEntry{
		ID:         entry.ID.String(),
		EntityType: string(entry.EntityType),
		EntityID:   entry.EntityID.String(),
		Action:     entry.Action,
		Actor:      entry.Actor,
		Changes:    entry.Changes,
		CreatedAt:  entry.CreatedAt,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	return nil
}

// Query returns matching entries newest first with the exact total count.
func (s *MongoStorage) Query(ctx context.Context, criteria Criteria) ([]Entry, int, error) {
	filter := bson.M{}
	if criteria.EntityType != "" {
		filter["entity_type"] = string(criteria.EntityType)
	}
	if criteria.EntityID != uuid.Nil {
		filter["entity_id"] = criteria.EntityID.String()
	}
	if criteria.Action != "" {
		filter["action"] = criteria.Action
	}
	if criteria.Actor != "" {
		filter["actor"] = criteria.Actor
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Join(ErrStorageFailure, err)
	}

	page := criteria.Page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Join(ErrStorageFailure, err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	var docs []mongoEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, errors.Join(ErrStorageFailure, err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		entry, err := d.toEntry()
		if err != nil {
			return nil, 0, errors.Join(ErrStorageFailure, err)
		}
		entries = append(entries, entry)
	}

	return entries, int(total), nil
}

func (d mongoEntry) toEntry() (Entry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return Entry{}, err
	}
	entityID, err := uuid.Parse(d.EntityID)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:         id,
		EntityType: EntityType(d.EntityType),
		EntityID:   entityID,
		Action:     d.Action,
		Actor:      d.Actor,
		Changes:    d.Changes,
		CreatedAt:  d.CreatedAt,
	}, nil
}
