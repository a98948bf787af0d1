package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"carrental/internal/app/commands"
	"carrental/internal/app/confirmation"
	"carrental/internal/app/dto"
	catalogapp "carrental/internal/app/handlers/catalog"
	notificationsapp "carrental/internal/app/handlers/notifications"
	quotesapp "carrental/internal/app/handlers/quotes"
	reservationsapp "carrental/internal/app/handlers/reservations"
	"carrental/internal/app/middleware"
	appoutbox "carrental/internal/app/outbox"
	"carrental/internal/app/policies"
	"carrental/internal/app/queries"
	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/infra/broker/kafka"
	"carrental/internal/infra/config"
	"carrental/internal/infra/dispatch"
	"carrental/internal/infra/fixtures"
	grpcserver "carrental/internal/infra/grpc"
	ginserver "carrental/internal/infra/http/gin"
	"carrental/internal/infra/obs"
	outboxrelay "carrental/internal/infra/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		obs.NewLogger("dev").Warn("dotenv load failed", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.loadFixtures(ctx); err != nil {
		logger.Warn("fixtures load failed", "error", err)
	}

	err = app.run(ctx)
	app.close()
	if err != nil {
		logger.Error("carrental stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("carrental stopped")
}

type application struct {
	cfg      config.Config
	logger   *slog.Logger
	backends *backends
	runner   uow.Runner
	commands commands.Bus
	queries  queries.Bus
	health   obs.HealthHandlers

	pool     *dispatch.Pool
	producer *kafka.Producer
	consumer *kafka.Consumer
	relay    *outboxrelay.Worker
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{
		cfg:      cfg,
		logger:   logger,
		backends: b,
		runner:   uow.Runner{Factory: b.factory, Backoff: cfg.RetryBackoff, Logger: logger},
		health:   obs.HealthHandlers{Checks: b.checks},
	}

	if cfg.KafkaEnabled() {
		app.producer, err = kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("carrental"))
		if err != nil {
			app.close()
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
	}

	executor := &dispatch.Executor{Locker: b.locker, Timeout: time.Minute, Logger: logger}
	dispatcher, err := app.buildDispatcher(executor)
	if err != nil {
		app.close()
		return nil, err
	}
	app.commands = app.buildCommandBus(dispatcher)
	app.queries = app.buildQueryBus()
	executor.Commands = app.commands

	app.relay = &outboxrelay.Worker{
		Store:       b.outbox,
		Producer:    app.eventPublisher(),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute},
		Logger:      logger,
	}
	return app, nil
}

func (a *application) buildDispatcher(executor *dispatch.Executor) (policies.TaskDispatcher, error) {
	switch a.cfg.Dispatch {
	case config.DispatchMemory:
		a.pool = dispatch.NewPool(executor, a.cfg.DispatchWorkers, a.cfg.DispatchQueueSize, a.logger)
		return a.pool, nil
	case config.DispatchKafka:
		topic := kafka.Topic(a.cfg.KafkaTopicPrefix, dispatch.TasksTopic)
		consumer, err := kafka.NewConsumer(a.cfg.KafkaBrokers, a.cfg.KafkaGroupID, kafka.NewConfig("carrental"),
			dispatch.TaskConsumer{Executor: executor, Logger: a.logger}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		a.consumer = consumer
		return dispatch.KafkaDispatcher{Producer: a.producer, Topic: topic}, nil
	default:
		return dispatch.Inline{Executor: executor}, nil
	}
}

func (a *application) buildCommandBus(dispatcher policies.TaskDispatcher) commands.Bus {
	pricing := rental.DailyRate{}
	engine := &confirmation.ReservationEngine{Selector: a.selector(), Pricing: pricing, Encoder: appoutbox.JSONEventEncoder{}}
	coordinator := &confirmation.Coordinator{
		Runner:         a.runner,
		Engine:         engine,
		ParallelGroups: a.cfg.ParallelGroups,
		Logger:         a.logger,
	}

	bus := commands.NewInMemoryBus()
	commands.Register[quotesapp.CreateQuoteCommand, dto.Quote](bus, &quotesapp.CreateQuoteHandler{
		Runner: a.runner,
		Engine: confirmation.QuoteEngine{Pricing: pricing},
	})
	commands.Register[reservationsapp.ConfirmQuotesCommand, *reservationsapp.ConfirmQuotesResult](bus, &reservationsapp.ConfirmQuotesHandler{
		Coordinator: coordinator,
		Notifier:    a.backends.notifier,
		Receipts:    a.backends.receipts,
		Logger:      a.logger,
	})
	commands.Register[reservationsapp.SubmitQuotesCommand, *reservationsapp.SubmitQuotesResult](bus, &reservationsapp.SubmitQuotesHandler{
		Dispatcher: dispatcher,
	})
	commands.Register[reservationsapp.CancelReservationCommand, *reservationsapp.CancelReservationResult](bus, &reservationsapp.CancelReservationHandler{
		Engine: engine,
	})
	a.logger.Debug("command handlers registered", "keys", bus.Keys())

	return middleware.ChainCommands(bus,
		middleware.Logging(a.logger),
		middleware.Validation(),
		middleware.Idempotency(a.backends.idempotency, nil, reservationsapp.IsFinal),
		middleware.Transaction(a.runner),
	)
}

func (a *application) buildQueryBus() queries.Bus {
	bus := queries.NewInMemoryBus()
	queries.Register[reservationsapp.RenterReservationsQuery, dto.RenterReservations](bus, &reservationsapp.RenterReservationsHandler{Catalog: a.backends.catalog})
	queries.Register[catalogapp.ListCompaniesQuery, []string](bus, &catalogapp.ListCompaniesHandler{Catalog: a.backends.catalog})
	queries.Register[catalogapp.CarTypesQuery, []dto.CarType](bus, &catalogapp.CarTypesHandler{Runner: a.runner})
	queries.Register[catalogapp.AvailableCarTypesQuery, []dto.CarType](bus, &catalogapp.AvailableCarTypesHandler{Runner: a.runner})
	queries.Register[catalogapp.FleetQuery, dto.Fleet](bus, &catalogapp.FleetHandler{Runner: a.runner})
	queries.Register[notificationsapp.RenterNotificationsQuery, []dto.Notification](bus, &notificationsapp.RenterNotificationsHandler{Reader: a.backends.inbox})

	return middleware.ChainQueries(bus,
		middleware.QueryLogging(a.logger),
		middleware.QueryValidation(),
	)
}

func (a *application) selector() rental.CarSelector {
	if a.cfg.Selection == config.SelectionFirst {
		return rental.FirstSelector{}
	}
	return rental.RandomSelector{}
}

func (a *application) eventPublisher() outboxrelay.Producer {
	if a.producer != nil {
		return a.producer
	}
	return logPublisher{logger: a.logger}
}

// loadFixtures seeds the in-memory store on every start. Persistent stores
// are only seeded when FIXTURES_PATH is set, since registration replaces a
// company's fleet.
func (a *application) loadFixtures(ctx context.Context) error {
	path := a.cfg.FixturesPath
	if path == "" {
		if a.cfg.Storage != config.StorageMemory && a.cfg.Storage != "" {
			return nil
		}
		path = fixtures.DefaultPath()
	}
	_, err := fixtures.Load(ctx, path, a.backends.registrar, a.logger)
	return err
}

func (a *application) run(ctx context.Context) error {
	server := ginserver.NewServer(a.cfg, obs.Middleware{Logger: a.logger}, a.health, ginserver.Handlers{
		Quotes:        ginserver.QuoteHandler{Commands: a.commands},
		Reservations:  ginserver.ReservationHandler{Commands: a.commands, Queries: a.queries},
		Catalog:       ginserver.CatalogHandler{Queries: a.queries},
		Notifications: ginserver.NotificationHandler{Queries: a.queries},
	})

	var grpcLis net.Listener
	if a.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcLis = lis
	}

	if a.pool != nil {
		a.pool.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server starting", "addr", a.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if grpcLis != nil {
		health := grpcserver.NewServer(a.health, a.logger)
		g.Go(func() error {
			a.logger.Info("gRPC health server starting", "addr", a.cfg.GRPCAddr)
			return health.GRPC.Serve(grpcLis)
		})
		g.Go(func() error {
			health.Watch(gctx, 5*time.Second)
			health.GRPC.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		return ignoreCanceled(a.relay.Run(gctx))
	})

	if a.consumer != nil {
		topic := kafka.Topic(a.cfg.KafkaTopicPrefix, dispatch.TasksTopic)
		g.Go(func() error {
			a.logger.Info("confirmation consumer starting", "topic", topic, "group", a.cfg.KafkaGroupID)
			return ignoreCanceled(a.consumer.Run(gctx, []string{topic}))
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.consumer.Close()
		})
	}

	return g.Wait()
}

func (a *application) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Warn("kafka producer close failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.backends.close(ctx, a.logger)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logPublisher stands in for Kafka when no brokers are configured, so the
// outbox is still drained.
type logPublisher struct {
	logger *slog.Logger
}

func (p logPublisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.logger.Debug("domain event", "topic", topic, "key", key, "type", headers["ce-type"], "bytes", len(payload))
	return nil
}
