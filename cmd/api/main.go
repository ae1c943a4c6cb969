package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/qrcatalog-backend/api/controllers"
	"github.com/angelmondragon/qrcatalog-backend/api/routes"
	"github.com/angelmondragon/qrcatalog-backend/internal/analytics"
	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/internal/orders"
	"github.com/angelmondragon/qrcatalog-backend/internal/requests"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/db"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/metrics"
	"github.com/angelmondragon/qrcatalog-backend/pkg/migrate"
	"github.com/angelmondragon/qrcatalog-backend/pkg/pubsub"
	"github.com/angelmondragon/qrcatalog-backend/pkg/qr"
	"github.com/angelmondragon/qrcatalog-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency replay and rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fanoutMetrics := metrics.NewFanoutMetrics(registry)

	var (
		events       *pubsub.EventPublisher
		pubsubPinger controllers.Pinger
	)
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
		pubsubPinger = psClient
		events, err = psClient.OrderEvents()
		if err != nil {
			logg.Error(ctx, "failed to create order event publisher", err)
			os.Exit(1)
		}
	}

	svc, err := buildServices(cfg, logg, docs, dbClient, events, fanoutMetrics)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Redis:    redisClient,
			DocStore: docs,
			DB:       dbClient,
			PubSub:   pubsubPinger,
			Gatherer: registry,
		}, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, docs *docstore.Client, dbClient *db.Client, events *pubsub.EventPublisher, fanoutMetrics *metrics.FanoutMetrics) (routes.Services, error) {
	codec := qr.NewCodec(cfg.QR)

	catalogRepo := catalog.NewRepository(docs, cfg.DocStore.IncrementRetries)
	catalogSvc, err := catalog.NewService(catalogRepo, codec, cfg.QR.CurrencySymbol, logg)
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo := cart.NewRepository(docs)
	cartSvc, err := cart.NewService(cartRepo, catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	// A nil *EventPublisher must not reach the engine as a non-nil interface.
	var engine *orders.Engine
	if events != nil {
		engine, err = orders.NewEngine(docs, orders.NewJournalRepository(dbClient.DB()), cartRepo, events, fanoutMetrics, logg)
	} else {
		engine, err = orders.NewEngine(docs, orders.NewJournalRepository(dbClient.DB()), cartRepo, nil, fanoutMetrics, logg)
	}
	if err != nil {
		return routes.Services{}, err
	}
	orderSvc, err := orders.NewService(engine, docs, catalogSvc)
	if err != nil {
		return routes.Services{}, err
	}

	requestRepo := requests.NewRepository(docs, cfg.DocStore.IncrementRetries)
	requestSvc, err := requests.NewService(requestRepo, catalogSvc)
	if err != nil {
		return routes.Services{}, err
	}

	analyticsSvc, err := analytics.NewService(catalogRepo, requestRepo, catalogSvc, docs)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Orders:    orderSvc,
		Requests:  requestSvc,
		Analytics: analyticsSvc,
		QR:        codec,
	}, nil
}
