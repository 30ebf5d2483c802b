package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"cinecritic/config"
	"cinecritic/internal/events"
	"cinecritic/internal/handler"
	"cinecritic/internal/integration/rabbitmq"
	"cinecritic/internal/metrics"
	"cinecritic/internal/middleware"
	"cinecritic/internal/notifications"
	"cinecritic/internal/outbox"
	cinecritic_redis "cinecritic/internal/redis"
	"cinecritic/internal/repository"
	"cinecritic/internal/server"
	"cinecritic/internal/services"
	"cinecritic/internal/websocket"
	"cinecritic/pkg/database"
	"cinecritic/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Logger.Error("api exited with error", zap.Error(err))
		l.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bus := events.NewBus(l.Named("events"))
	m.Register(bus)

	var (
		db        *sql.DB
		runner    repository.TxRunner
		sqlRunner *repository.SQLTxRunner
		health    []func(ctx context.Context) error
		limiter   middleware.Limiter
	)

	if cfg.DatabaseEnabled() {
		var err error
		db, err = database.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.InitSchema(ctx, db); err != nil {
			return err
		}
		sqlRunner = repository.NewSQLTxRunner(db, bus.Publish, l.Named("repository"))
		runner = sqlRunner
		health = append(health, func(ctx context.Context) error { return database.HealthCheck(ctx, db) })
	} else {
		l.Logger.Warn("DB_HOST not set, using the in-memory movie store")
		runner = repository.NewMemoryTxRunner(repository.NewMemoryStore(), bus.Publish)
	}

	hub := websocket.NewHub(l.Named("hub")).WithMetrics(m)
	var (
		broadcaster  notifications.Broadcaster = hub
		refreshStore services.RefreshStore     = services.NewMemoryRefreshStore()
		bridge       *websocket.RedisBridge
		redisClient  *goredis.Client
	)

	if cfg.RedisEnabled() {
		redisClient = cinecritic_redis.NewClient(cinecritic_redis.ConfigFrom(cfg))
		defer redisClient.Close()
		if err := cinecritic_redis.Ping(ctx, redisClient); err != nil {
			return err
		}
		refreshStore = cinecritic_redis.NewRefreshStore(redisClient)

		rlCfg := cinecritic_redis.DefaultRateLimitConfig()
		if cfg.CommentLimit > 0 {
			rlCfg.CommentLimit = cfg.CommentLimit
		}
		limiter = cinecritic_redis.NewRateLimiter(redisClient, rlCfg)

		bridge = websocket.NewRedisBridge(
			cinecritic_redis.NewPublisher(redisClient),
			cinecritic_redis.NewSubscriber(redisClient),
			hub,
			l.Named("redis-bridge"),
		)
		broadcaster = bridge
		health = append(health, func(ctx context.Context) error { return cinecritic_redis.Ping(ctx, redisClient) })
	} else {
		l.Logger.Warn("REDIS_HOST not set, refresh tokens and hub fan-out are local to this instance")
	}

	notifications.NewDispatcher(broadcaster, events.GroupAdministrators, l.Named("notifications")).
		WithMetrics(m).
		Register(bus)

	var relay *outbox.Processor
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, cfg.RabbitExchange, "cinecritic-api", l.Named("rabbitmq"))
		if err != nil {
			return err
		}
		defer publisher.Close()
		if sqlRunner != nil {
			sqlRunner.WithOutbox()
			relay = outbox.DefaultProcessor(repository.NewOutboxRepository(db), publisher, l.Named("outbox")).
				WithMetrics(m)
		} else {
			l.Logger.Warn("no database configured, integration events are published without an outbox")
			publisher.Register(bus)
		}
		health = append(health, func(context.Context) error {
			if !publisher.IsHealthy() {
				return errors.New("rabbitmq connection closed")
			}
			return nil
		})
	}

	tokens := services.NewTokenService(refreshStore, cfg)
	catalog := services.NewCatalogService(runner)
	moderation := services.NewModerationService(runner, l.Named("moderation"))

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:     handler.NewAuthHandler(tokens),
		Movies:   handler.NewMovieHandler(catalog),
		Comments: handler.NewCommentHandler(moderation),
		Hub:      websocket.NewHandler(tokens, hub, l.Named("hub")),
	}, server.Dependencies{
		Tokens:   tokens,
		Limiter:  limiter,
		Health:   checkAll(health),
		Gatherer: reg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if bridge != nil {
		g.Go(func() error {
			err := bridge.Run(gctx, []string{events.GroupAdministrators})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if relay != nil {
		g.Go(func() error {
			err := relay.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func checkAll(checks []func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
