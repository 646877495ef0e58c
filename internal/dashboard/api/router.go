package api

import (
	"context"
	"net/http"

	"probeview/internal/command"
	"probeview/internal/config"
	"probeview/internal/dashboard/api/middleware"
	av1 "probeview/internal/dashboard/api/v1"
	"probeview/internal/dashboard/stream"
	"probeview/internal/gateway"
	"probeview/internal/live"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router handles all routing logic
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger *zap.Logger
}

// NewRouter creates and configures a new router
func NewRouter(baseCtx context.Context, cfg *config.Config, poller *live.Poller, dispatcher *command.Dispatcher, gw gateway.Client, hub *stream.Hub, logger *zap.Logger) *Router {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: logger,
	}

	r.setupMiddleware()

	api := av1.NewAPI(baseCtx, poller, dispatcher, gw, logger)
	v1Router := r.engine.Group("/api/v1")
	api.RegisterRoutes(v1Router)

	// Snapshot stream for the presentation layer
	r.engine.GET("/api/v1/stream", hub.ServeWS)

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// setupMiddleware configures all middleware
func (r *Router) setupMiddleware() {
	m := middleware.New(r.config, r.logger)

	r.engine.Use(m.RequestID())
	r.engine.Use(m.Logger())
	r.engine.Use(m.Recovery())
	r.engine.Use(m.Secure())

	if r.config.API.CORS.Enabled {
		r.engine.Use(m.Cors())
	}
}
