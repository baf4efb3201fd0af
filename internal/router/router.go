package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dental-api/internal/handler"
	"github.com/jwalitptl/dental-api/internal/handler/health"
	promhandler "github.com/jwalitptl/dental-api/internal/handler/prometheus"
	"github.com/jwalitptl/dental-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Health     *health.Handler
	Materials  Handler
	Patients   Handler
	Procedures Handler
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodySize    int64
	CORSConfig     middleware.CORSConfig
	MetricsPath    string
	Namespace      string
	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type Router struct {
	engine      *gin.Engine
	handlers    Handlers
	metrics     *promhandler.Handler
	rateLimiter *middleware.RateLimiter
	config      RouterConfig
}

func NewRouter(handlers Handlers, logger *zerolog.Logger, config RouterConfig) *Router {
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = middleware.DefaultSizeLimitConfig().MaxBodySize
	}

	handler.ConfigureBinding()
	engine := gin.New()

	r := &Router{
		engine:   engine,
		handlers: handlers,
		metrics:  promhandler.New(config.Namespace, config.Registerer, config.Gatherer),
		rateLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}),
		config: config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		r.metrics.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
	)

	return r
}

func (r *Router) Setup() {
	r.engine.GET(r.config.MetricsPath, r.metrics.Handler())
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(
		r.rateLimiter.RateLimit(),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: r.config.MaxBodySize}),
		middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.RequestTimeout}),
	)

	for _, h := range []Handler{r.handlers.Materials, r.handlers.Patients, r.handlers.Procedures} {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// RateLimiter is exposed so the server can prune idle clients periodically.
func (r *Router) RateLimiter() *middleware.RateLimiter {
	return r.rateLimiter
}
