package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TaskLocks marks confirmation tasks as in flight so concurrent deliveries of
// the same task run once. A lock left behind by a crashed worker can be taken
// over once its lease has passed; the TTL index removes it eventually.
type TaskLocks struct {
	col   *mongo.Collection
	lease time.Duration
	now   func() time.Time
}

func NewTaskLocks(db *mongo.Database, lease time.Duration) *TaskLocks {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &TaskLocks{col: db.Collection(taskLocksCollection), lease: lease, now: time.Now}
}

func (l *TaskLocks) TryLock(ctx context.Context, taskID string) (bool, error) {
	now := l.now().UTC()
	doc := bson.M{"_id": taskID, "locked_at": now, "expires_at": now.Add(l.lease)}
	_, err := l.col.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}
	res, err := l.col.UpdateOne(ctx,
		bson.M{"_id": taskID, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"locked_at": now, "expires_at": now.Add(l.lease)}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (l *TaskLocks) Unlock(ctx context.Context, taskID string) error {
	_, err := l.col.DeleteOne(ctx, bson.M{"_id": taskID})
	return err
}
