package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jobpulse/notifier/internal/middleware"
	"github.com/jobpulse/notifier/pkg/logger"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	healthH Handler
	engineH Handler
	notifH  Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	engineH Handler,
	notifH Handler,
	cfg Config,
	log *logger.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
	)

	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  cfg.RateLimit,
			Burst: cfg.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:  engine,
		auth:    auth,
		healthH: healthH,
		engineH: engineH,
		notifH:  notifH,
	}
}

// Setup wires all route groups. The engine trigger sits behind
// operator auth; health and metrics stay open for probes and scrapers.
func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine.Group(""))
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	r.notifH.RegisterRoutes(api)

	protected := r.engine.Group("/api/v1")
	protected.Use(r.auth.Authenticate())
	r.engineH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
