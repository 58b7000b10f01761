package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/praxisdev/identity-api/config"
	"github.com/praxisdev/identity-api/internal/repository/postgres"
	internalworker "github.com/praxisdev/identity-api/internal/worker"
	"github.com/praxisdev/identity-api/pkg/logger"
	"github.com/praxisdev/identity-api/pkg/messaging/redis"
	"github.com/praxisdev/identity-api/pkg/metrics"
	"github.com/praxisdev/identity-api/pkg/worker"
)

const healthAddr = ":8081"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	cfg.Logger.Service = "identity-worker"
	logg := logger.New(cfg.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("identity", "worker")

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	eventRepo := postgres.NewSecurityEventRepository(base)

	broker, err := redis.NewBroker(cfg.Redis.ToBrokerConfig(), logg, m)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Worker.ToProcessorConfig(), logg, m)
	retention := internalworker.NewRetentionWorker(eventRepo, outboxRepo,
		cfg.Worker.RetentionDays, cfg.Worker.RetentionInterval, logg)

	startHealthServer(db, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.WatchDBConnections(ctx, db.DB, 0)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logg.Info().Msg("shutting down...")
		cancel()
	}()

	go retention.Start(ctx)

	if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Fatal().Err(err).Msg("outbox processor failed")
	}
	logg.Info().Msg("worker exited")
}

// startHealthServer exposes liveness, readiness and metrics on a side port so
// the poller itself stays off the public listener.
func startHealthServer(db *sqlx.DB, logg zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(healthAddr, mux); err != nil {
			logg.Error().Err(err).Msg("health server failed")
		}
	}()
}
