package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carrental/internal/app/middleware"
)

// IdempotencyStore keeps one document per key. Documents carry their own
// expiry; the TTL monitor deletes them lazily, so reads also filter on it.
// Key locks share the task lock collection.
type IdempotencyStore struct {
	col   *mongo.Collection
	ttl   time.Duration
	now   func() time.Time
	locks *TaskLocks
}

func NewIdempotencyStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*IdempotencyStore, error) {
	col := db.Collection(idempotencyCollection)
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &IdempotencyStore{col: col, ttl: ttl, now: time.Now, locks: NewTaskLocks(db, 0)}, nil
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": s.now().UTC()}},
		},
	}
	var doc idempotencyDocument
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return middleware.IdempotencyRecord{}, false, nil
	case err != nil:
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: doc.ID, Payload: doc.Payload, Error: doc.Error, OccurredAt: doc.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	set := bson.M{
		"payload":     rec.Payload,
		"error":       rec.Error,
		"occurred_at": rec.OccurredAt,
	}
	update := bson.M{"$set": set}
	if s.ttl > 0 {
		set["expires_at"] = s.now().UTC().Add(s.ttl)
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}
	_, err := s.col.UpdateByID(ctx, rec.Key, update, options.Update().SetUpsert(true))
	return err
}

type idempotencyDocument struct {
	ID         string     `bson:"_id"`
	Payload    []byte     `bson:"payload"`
	Error      string     `bson:"error"`
	OccurredAt time.Time  `bson:"occurred_at"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
}

func (s *IdempotencyStore) TryLock(ctx context.Context, key string) (bool, error) {
	return s.locks.TryLock(ctx, key)
}

func (s *IdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.locks.Unlock(ctx, key)
}

var (
	_ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
	_ middleware.KeyLocker        = (*IdempotencyStore)(nil)
)
