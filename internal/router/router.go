package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/handler/prometheus"
	"github.com/praxisdev/identity-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	Mode           string
	RequestTimeout time.Duration
	RateLimit      middleware.RateLimiterConfig
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
}

func DefaultConfig() Config {
	return Config{
		Mode:           gin.ReleaseMode,
		RequestTimeout: 30 * time.Second,
		RateLimit:      middleware.DefaultRateLimiterConfig(),
		CORS:           middleware.DefaultCORSConfig(),
		Security:       middleware.DefaultSecurityConfig(),
	}
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    Handler
	userH    Handler
	auditH   Handler
	healthH  Handler
	metricsH *prometheus.Handler
}

func New(
	auth *middleware.AuthMiddleware,
	authH Handler,
	userH Handler,
	auditH Handler,
	healthH Handler,
	metricsH *prometheus.Handler,
	logger zerolog.Logger,
	config Config,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.ClientInfo(),
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		metricsH.Middleware(),
		middleware.Timeout(config.RequestTimeout),
		middleware.NewRateLimiter(config.RateLimit).RateLimit(),
	)

	return &Router{
		engine:   engine,
		auth:     auth,
		authH:    authH,
		userH:    userH,
		auditH:   auditH,
		healthH:  healthH,
		metricsH: metricsH,
	}
}

func (r *Router) Setup() {
	// Scrape endpoint stays outside /api/v1 and outside auth.
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.userH.RegisterRoutes(protected)
	r.auditH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
