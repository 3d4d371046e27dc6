package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/auth"
	"github.com/PratikDhanave/portfolio-inbox/internal/config"
	"github.com/PratikDhanave/portfolio-inbox/internal/contact"
	"github.com/PratikDhanave/portfolio-inbox/internal/handlers"
	"github.com/PratikDhanave/portfolio-inbox/internal/metrics"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config       config.Config
	Store        store.Store
	Gate         *contact.Gate
	Mailer       contact.Notifier
	Objects      handlers.Uploader
	Stats        ratelimit.StatsStore
	AuthThrottle *ratelimit.BucketStore
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// NewRouter wires public endpoints and the basic-auth admin API.
// Public: /health, /ready, /metrics, /api/conversations, /api/contact
// Authenticated: /api/admin/*
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	// ClientIP keys the admin login throttle; only listed proxies may set it.
	if err := r.SetTrustedProxies(d.Config.Admin.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(requestID(), observe(log, d.Metrics), gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			log.Warn("readiness ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")
	handlers.RegisterConversationRoutes(api, d.Store, log)
	handlers.RegisterContactRoutes(api, d.Gate)

	// Admin group enforces basic auth.
	admin := api.Group("/admin")
	admin.Use(auth.BasicAuthMiddleware(auth.Credentials{
		User: d.Config.Admin.User,
		Pass: d.Config.Admin.Pass,
	}, d.AuthThrottle))

	handlers.RegisterAdminAuthRoutes(admin)
	handlers.RegisterAdminConversationRoutes(admin, d.Store, log)
	handlers.RegisterAdminMessageRoutes(admin, d.Store, log)
	handlers.RegisterUploadRoutes(admin, d.Store, d.Objects, d.Config.Storage.MaxUploadBytes, log)
	handlers.RegisterEmailRoutes(admin, d.Mailer, log)
	if d.Stats != nil {
		handlers.RegisterContactStatsRoutes(admin, d.Stats, log)
	}

	return r
}
