package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/handler"
	"github.com/jwalitptl/camera-relay/internal/handler/system"
	"github.com/jwalitptl/camera-relay/internal/handler/webhook"
	"github.com/jwalitptl/camera-relay/internal/middleware"
)

type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	webhookH *webhook.Handler
	systemH  *system.Handler
}

func NewRouter(cfg *config.Config, webhookH *webhook.Handler, systemH *system.Handler) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:   gin.New(),
		cfg:      cfg,
		webhookH: webhookH,
		systemH:  systemH,
	}
}

func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Recovery())

	if r.cfg.Monitoring.PrometheusEnabled {
		path := r.cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, handler.MetricsHandler())
	}

	// Operational endpoints: no webhook auth, no allowlist.
	r.systemH.RegisterRoutes(r.engine.Group(""))

	// Webhook endpoints sit behind the full gate: request rate limit,
	// source-IP allowlist, then the shared token.
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(r.cfg.Webhook.RequestsPerSecond),
		Burst: r.cfg.Webhook.Burst,
	})
	hooks := r.engine.Group("")
	hooks.Use(middleware.BodyLimit(1 << 20))
	hooks.Use(limiter.RateLimit())
	hooks.Use(middleware.IPAllowlist(r.cfg.Webhook.AllowedIPs))
	hooks.Use(middleware.WebhookAuth(r.cfg.Webhook))
	r.webhookH.RegisterRoutes(hooks)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
