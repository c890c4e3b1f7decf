package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aistrack/platform/pkg/common/config"
	"github.com/aistrack/platform/pkg/common/database"
	"github.com/aistrack/platform/pkg/common/kafka"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/enrichment"
	"github.com/aistrack/platform/pkg/gateway/auth"
	"github.com/aistrack/platform/pkg/gateway/httpclient"
	"github.com/aistrack/platform/pkg/gateway/middleware"
	"github.com/aistrack/platform/pkg/gateway/routes"
	"github.com/aistrack/platform/pkg/geo"
	"github.com/aistrack/platform/pkg/ingestion"
	"github.com/aistrack/platform/pkg/observability/metrics"
	"github.com/aistrack/platform/pkg/retention"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	store := vessel.NewStore(cfg.StoreShards)
	checks := map[string]routes.ReadinessCheck{}

	listenerOpts := ingestion.Options{Metrics: m, StaleAfter: cfg.StaleAfter}
	sweeper := &retention.Sweeper{Store: store, Period: cfg.RetentionPeriod, Gauges: m}
	var repositories enrichment.Tiered

	if cfg.RedisEnabled {
		client, err := database.OpenRedis(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, mirror writes will be retried per update")
		}
		defer client.Close()

		mirrorTTL := cfg.RetentionPeriod
		if mirrorTTL <= 0 {
			mirrorTTL = cfg.StaleAfter
		}
		mirror := vessel.NewRedisMirror(client, mirrorTTL, cfg.StaleAfter)
		listenerOpts.Mirror = mirror
		sweeper.Mirror = mirror
		repositories = append(repositories, enrichment.NewRedisRepository(client))
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	if cfg.EnrichmentPersist {
		db, err := database.OpenPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres(db)

		repo := enrichment.NewGormRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate enrichment tables")
		}
		repositories = append(repositories, repo)
		sweeper.Expired = repo
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	if cfg.KafkaDecodedTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaDecodedTopic)
		defer producer.Close()
		listenerOpts.Publisher = producer
	}

	cacheOpts := enrichment.Options{
		TTL:          cfg.EnrichmentTTL,
		NegativeTTL:  cfg.EnrichmentNegativeTTL,
		FetchTimeout: cfg.EnrichmentFetchTimeout,
		Observer:     m,
	}
	if len(repositories) > 0 {
		cacheOpts.Repository = repositories
	}
	cache := enrichment.NewCache(cacheOpts)
	sweeper.Cache = cache

	httpClient, err := auth.ClientCredentials{
		TokenURL:     cfg.EnrichmentOAuthTokenURL,
		ClientID:     cfg.EnrichmentOAuthClientID,
		ClientSecret: cfg.EnrichmentOAuthClientSecret,
	}.Wrap(ctx, httpclient.New(cfg.EnrichmentFetchTimeout, cfg.EnrichmentUserAgent))
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid enrichment credentials")
	}
	fetcher := enrichment.NewHTTPFetcher(httpClient, enrichment.FetcherConfig{
		BaseURL: cfg.EnrichmentBaseURL,
		Retries: cfg.EnrichmentRetries,
	})

	// Feeders
	listener := ingestion.NewListener(store, listenerOpts)
	feeders, err := ingestion.FeedersFromConfig(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load feeders")
	}
	sources, err := listener.Open(feeders)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to open feeders")
	}

	feedersDone := make(chan error, 1)
	go func() {
		if err := ingestion.Run(ctx, sources); err != nil {
			feedersDone <- err
		}
	}()
	go sweeper.Run(ctx, cfg.RetentionSweepInterval)

	// Router
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.Metrics(m))

	api := router.PathPrefix("/api/v1").Subrouter()
	ships := routes.NewShipsHandler(store, geo.NewEngine(store), cache, fetcher.Fetch)
	ships.StaleAfter = cfg.StaleAfter
	ships.DetailWait = cfg.EnrichmentFetchTimeout + 5*time.Second
	ships.Register(api)
	routes.NewSystemHandler(listener, checks).Register(router, api)
	router.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      middleware.CORS(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"feeders": len(sources),
		}).Info("Tracker Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-feedersDone:
		logger.Log.WithError(err).Error("feeders stopped")
	}

	logger.Log.Info("Shutting down Tracker Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Tracker Service stopped")
}
