package httpserver

import (
	"context"
	"net/http"
	"time"

	"docnest/internal/handler"
	"docnest/pkg/otel"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Engine *gin.Engine
}

type RouterConfig struct {
	JWTSecret string
	// DevUserID is used for every request when JWTSecret is empty.
	DevUserID uuid.UUID
}

func NewRouter(
	cfg RouterConfig,
	documentHandler *handler.DocumentHandler,
	devHandler *handler.DevHandler,
	store Pinger,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), Metrics(), otel.GinMiddleware())

	registerHealth(r, store, nil)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	if cfg.JWTSecret == "" {
		logger.Warn("JWT secret is empty, API runs in dev mode", zap.String("user_id", cfg.DevUserID.String()))
		auth.Use(DevAuthMiddleware(cfg.DevUserID))
	} else {
		auth.Use(AuthMiddleware(cfg.JWTSecret))
	}
	{
		auth.POST("/documents", documentHandler.Create)
		auth.GET("/documents", documentHandler.List)
		auth.GET("/documents/:id", documentHandler.Get)
		auth.PUT("/documents/:id", documentHandler.Update)
		auth.PUT("/documents/:id/file", documentHandler.UploadFile)
		auth.GET("/documents/:id/file", documentHandler.DownloadFile)
	}

	// Public; the handler itself refuses outside local demo mode.
	if devHandler != nil {
		r.POST("/dev/reset-demo", devHandler.ResetDemo)
	}

	return &Router{Engine: r}
}

// registerHealth mounts /healthz and /readyz. ready, if set, adds a check on
// top of the store ping.
func registerHealth(r *gin.Engine, store Pinger, ready func() error) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if ready != nil {
			if err := ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
