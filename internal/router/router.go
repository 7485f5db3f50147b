package router

import (
	"github.com/gin-gonic/gin"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/health"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/outbox"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/prometheus"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/stream"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/middleware"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
)

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  *health.Handler
	metrics *prometheus.Handler
	streams *stream.Handler
	outbox  *outbox.Handler
	users   *user.Handler
}

type Handlers struct {
	Health  *health.Handler
	Metrics *prometheus.Handler
	Streams *stream.Handler
	Outbox  *outbox.Handler
	Users   *user.Handler
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, log *logger.Logger) *Router {
	// Set production mode
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  handlers.Health,
		metrics: handlers.Metrics,
		streams: handlers.Streams,
		outbox:  handlers.Outbox,
		users:   handlers.Users,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		r.metrics.Middleware(),
	)

	return r
}

func (r *Router) Setup() *gin.Engine {
	r.health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes
	r.streams.RegisterRoutes(api)
	r.outbox.RegisterRoutes(api)
	r.users.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.outbox.RegisterProtectedRoutes(protected)
	r.users.RegisterProtectedRoutes(protected)

	return r.engine
}
