package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"carrental/internal/app/middleware"
	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/policies"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	rediscache "carrental/internal/infra/cache/redis"
	"carrental/internal/infra/config"
	mongodb "carrental/internal/infra/db/mongo"
	"carrental/internal/infra/db/postgres"
	"carrental/internal/infra/dispatch"
	"carrental/internal/infra/notify/scylla"
	"carrental/internal/infra/obs"
	"carrental/internal/infra/storage/memory"
	"carrental/internal/infra/storage/s3"
)

// backends holds the storage side of the process as selected by config.
type backends struct {
	factory     uow.UoWFactory
	catalog     rental.Catalog
	registrar   rental.Registrar
	outbox      appoutbox.Store
	idempotency middleware.IdempotencyStore
	locker      dispatch.Locker
	notifier    policies.NotificationSink
	inbox       policies.NotificationReader
	receipts    policies.ReceiptArchive
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: map[string]obs.Check{}}
	if err := b.openStorage(ctx, cfg, logger); err != nil {
		b.close(ctx, logger)
		return nil, err
	}
	if err := b.openAncillary(ctx, cfg, logger); err != nil {
		b.close(ctx, logger)
		return nil, err
	}
	return b, nil
}

func (b *backends) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return fmt.Errorf("mongo connect: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("mongo idempotency store: %w", err)
		}
		catalog := mongodb.Catalog{DB: client.DB}
		b.factory = mongodb.Factory{DB: client.DB}
		b.catalog, b.registrar = catalog, catalog
		b.outbox = mongodb.NewOutboxStore(client.DB)
		b.idempotency = idem
		b.locker = idem
		b.checks["mongo"] = client.Ping
		logger.Info("storage ready", "backend", "mongo", "database", cfg.MongoDB)
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		catalog := postgres.Catalog{DB: db}
		b.factory = postgres.Factory{DB: db}
		b.catalog, b.registrar = catalog, catalog
		idem := postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL)
		b.outbox = postgres.OutboxStore{DB: db}
		b.idempotency = idem
		b.locker = idem
		b.checks["postgres"] = db.PingContext
		logger.Info("storage ready", "backend", "postgres")
	default:
		store := memory.NewStore(memory.NewOutbox())
		b.factory = store
		b.catalog, b.registrar = store, store
		idem := memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		b.outbox = store.Outbox()
		b.idempotency = idem
		b.locker = idem
		logger.Info("storage ready", "backend", "memory")
	}
	return nil
}

func (b *backends) openAncillary(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		b.closers = append(b.closers, func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		store := rediscache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		b.idempotency = store
		b.locker = store
		b.checks["redis"] = store.Ping
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	}

	if cfg.ScyllaEnabled() {
		session, err := scylla.NewSession(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("scylla init: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { session.Close(); return nil })
		store := scylla.NewStore(session, logger)
		b.notifier, b.inbox = store, store
		b.checks["scylla"] = store.Ping
	} else {
		inbox := memory.NewNotifications()
		b.notifier, b.inbox = inbox, inbox
	}

	if cfg.S3Enabled() {
		client, err := s3.NewClient(s3.Options{
			Endpoint:  cfg.S3Endpoint,
			UseSSL:    cfg.S3UseSSL,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			return err
		}
		b.receipts = s3.ReceiptArchive{Uploader: client}
		b.checks["s3"] = client.Ping
	} else {
		b.receipts = s3.NoopArchive{}
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (b *backends) close(ctx context.Context, logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}
	b.closers = nil
}
