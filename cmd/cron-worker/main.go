package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/internal/cron"
	"github.com/angelmondragon/qrcatalog-backend/internal/orders"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/db"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/metrics"
	"github.com/angelmondragon/qrcatalog-backend/pkg/migrate"
	"github.com/angelmondragon/qrcatalog-backend/pkg/pubsub"
	"github.com/angelmondragon/qrcatalog-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := docstore.NewClient(cfg.DocStore, logg)
	if err != nil {
		logg.Error(ctx, "failed to create docstore client", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	fanoutMetrics := metrics.NewFanoutMetrics(prometheus.DefaultRegisterer)
	journal := orders.NewJournalRepository(dbClient.DB())

	var engine *orders.Engine
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		events, err := psClient.OrderEvents()
		if err != nil {
			logg.Error(ctx, "failed to create order event publisher", err)
			os.Exit(1)
		}
		engine, err = orders.NewEngine(docs, journal, cart.NewRepository(docs), events, fanoutMetrics, logg)
		if err != nil {
			logg.Error(ctx, "failed to create fan-out engine", err)
			os.Exit(1)
		}
	} else {
		engine, err = orders.NewEngine(docs, journal, cart.NewRepository(docs), nil, fanoutMetrics, logg)
		if err != nil {
			logg.Error(ctx, "failed to create fan-out engine", err)
			os.Exit(1)
		}
	}

	repairer, err := orders.NewRepairer(journal, engine, cfg.Fanout, fanoutMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create fan-out repairer", err)
		os.Exit(1)
	}

	repairJob, err := cron.NewFanoutRepairJob(cron.FanoutRepairJobParams{Logger: logg, Repairer: repairer})
	if err != nil {
		logg.Error(ctx, "failed to create fan-out repair job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewJournalRetentionJob(cron.JournalRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: journal,
		Retention:  time.Duration(cfg.Cron.JournalRetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		logg.Error(ctx, "failed to create journal retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(repairJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,

		// Finish before the lease lapses.
		CycleTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "interval": cfg.Cron.Interval.String()})
	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
