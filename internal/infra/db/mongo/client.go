package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	companiesCollection   = "agg_companies"
	carsCollection        = "agg_cars"
	outboxCollection      = "app_outbox"
	idempotencyCollection = "app_idempotency"
	taskLocksCollection   = "app_task_locks"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	models := map[string][]mongo.IndexModel{
		carsCollection: {
			{Keys: bsonD("company", 1, "car_id", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("reservations.renter", 1)},
		},
		outboxCollection: {
			{Keys: bsonD("state", 1, "next_attempt_at", 1)},
		},
		taskLocksCollection: {
			{Keys: bsonD("expires_at", 1), Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, idx := range models {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
