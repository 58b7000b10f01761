package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/praxisdev/identity-api/config"
	"github.com/praxisdev/identity-api/internal/breach"
	"github.com/praxisdev/identity-api/internal/email"
	auditHandler "github.com/praxisdev/identity-api/internal/handler/audit"
	authHandler "github.com/praxisdev/identity-api/internal/handler/auth"
	healthHandler "github.com/praxisdev/identity-api/internal/handler/health"
	prometheusHandler "github.com/praxisdev/identity-api/internal/handler/prometheus"
	userHandler "github.com/praxisdev/identity-api/internal/handler/user"
	"github.com/praxisdev/identity-api/internal/middleware"
	"github.com/praxisdev/identity-api/internal/repository"
	"github.com/praxisdev/identity-api/internal/repository/memory"
	"github.com/praxisdev/identity-api/internal/repository/postgres"
	"github.com/praxisdev/identity-api/internal/router"
	auditService "github.com/praxisdev/identity-api/internal/service/audit"
	authService "github.com/praxisdev/identity-api/internal/service/auth"
	userService "github.com/praxisdev/identity-api/internal/service/user"
	"github.com/praxisdev/identity-api/pkg/auth"
	"github.com/praxisdev/identity-api/pkg/circuitbreaker"
	"github.com/praxisdev/identity-api/pkg/hibp"
	"github.com/praxisdev/identity-api/pkg/logger"
	"github.com/praxisdev/identity-api/pkg/metrics"
	"github.com/praxisdev/identity-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	cfg.Logger.Service = "identity-api"
	logg := logger.New(cfg.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("identity", "api")
	go m.WatchDBConnections(context.Background(), db.DB, 0)

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	eventRepo := postgres.NewSecurityEventRepository(base)

	var tokenRepo repository.TokenRepository = postgres.NewTokenRepository(base)
	if cfg.TokenStore == "memory" {
		tokenRepo = memory.NewTokenStore()
	}

	lookup := newBreachLookup(cfg.BreachCheck)
	checker := breach.NewChecker(lookup, cfg.BreachCheck.ToCheckerConfig(), logg, m)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	hasher := security.NewBcryptHasher(security.DefaultCost)

	emailSvc := email.NewNoopService()
	if cfg.Email.Enabled {
		emailSvc, err = email.NewSMTPService(cfg.Email.ToSMTPConfig(), logg)
		if err != nil {
			logg.Fatal().Err(err).Msg("failed to configure email")
		}
	}

	auditor := auditService.NewService(eventRepo, logg)

	authSvc := authService.NewService(userRepo, tokenRepo, jwtSvc, emailSvc, hasher, checker, auditor, logg)
	userSvc := userService.NewService(userRepo, tokenRepo, emailSvc, hasher, checker, auditor, logg)

	routerCfg := router.DefaultConfig()
	routerCfg.RequestTimeout = cfg.Server.RequestTimeout
	routerCfg.RateLimit = middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		Burst: cfg.RateLimit.Burst,
	}
	if !cfg.RateLimit.Enabled {
		routerCfg.RateLimit.Rate = rate.Inf
	}

	r := router.New(
		middleware.NewAuthMiddleware(jwtSvc),
		authHandler.NewHandler(authSvc),
		userHandler.NewHandler(userSvc),
		auditHandler.NewHandler(auditor),
		healthHandler.NewHandler(db),
		prometheusHandler.New(),
		logg,
		routerCfg,
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logg.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logg.Info().Msg("server exited")
}

// newBreachLookup builds the range-API client. The circuit breaker keeps a
// flapping upstream from adding open-timeout latency to every signup.
func newBreachLookup(cfg config.BreachCheckConfig) *hibp.Client {
	opts := []hibp.Option{
		hibp.WithTimeouts(cfg.OpenTimeout(), cfg.ReadTimeout()),
		hibp.WithPadding(cfg.Padding),
		hibp.WithBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "hibp",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		})),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, hibp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, hibp.WithUserAgent(cfg.UserAgent))
	}
	return hibp.New(opts...)
}
