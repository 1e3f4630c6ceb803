// Package router wires the HTTP surface: middleware chain, versioned API
// routes, and the provider-facing webhook endpoint.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/logger"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/handler"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Config bounds the inbound surface.
type Config struct {
	// MaxBodyBytes caps request body size, webhook payloads included.
	MaxBodyBytes int64
	// WebhookRateLimit is the per-connection delivery budget per window.
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
	// CORSAllowedOrigins whitelists browser origins for the connections API.
	// Empty means deny all cross-origin requests.
	CORSAllowedOrigins []string
	// RequestTimeout bounds each handler via the request context deadline.
	RequestTimeout time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20, // 1 MiB
		WebhookRateLimit:  120,
		WebhookRateWindow: time.Minute,
		RequestTimeout:    30 * time.Second,
	}
}

// Handlers collects the handlers mounted by Setup.
type Handlers struct {
	System     *handler.SystemHandler
	Connection *handler.ConnectionHandler
	Webhook    *handler.WebhookHandler
}

// Setup builds the gin engine with the full middleware chain and all routes.
func Setup(cfg Config, log *zap.Logger, h Handlers) *gin.Engine {
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(cfg.MaxBodyBytes),
	)
	if cfg.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	engine.GET("/healthz", h.System.Health)
	engine.GET("/readyz", h.System.Ready)

	api := engine.Group("/api/v1")
	{
		api.GET("/integrations", h.Connection.ListIntegrations)

		connections := api.Group("/connections")
		{
			connections.POST("", h.Connection.Create)
			connections.GET("/:id", h.Connection.Get)
			connections.PATCH("/:id", h.Connection.Update)
			connections.POST("/:id/reconnect", h.Connection.Reconnect)
			connections.POST("/:id/sync", h.Connection.TriggerSync)
			connections.GET("/:id/sync-logs", h.Connection.ListSyncLogs)
			connections.GET("/:id/reservations", h.Connection.ListReservations)
		}
	}

	// Provider push endpoint, rate limited per connection.
	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookRateWindow)
	engine.POST("/webhooks/:connectionID", middleware.RateLimit(webhookLimiter), h.Webhook.Receive)

	return engine
}
