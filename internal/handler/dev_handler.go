package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DemoResetter wipes the catalog and seeds the demo data again.
type DemoResetter interface {
	Reset(ctx context.Context) error
}

type DevHandler struct {
	demo        DemoResetter
	env         string
	demoEnabled bool
	logger      *zap.Logger
}

func NewDevHandler(demo DemoResetter, env string, demoEnabled bool, logger *zap.Logger) *DevHandler {
	return &DevHandler{
		demo:        demo,
		env:         env,
		demoEnabled: demoEnabled,
		logger:      logger,
	}
}

// ResetDemo handles POST /dev/reset-demo. It only works in the local
// environment with demo data enabled.
func (h *DevHandler) ResetDemo(c *gin.Context) {
	if h.env != "local" {
		c.JSON(http.StatusForbidden, gin.H{"error": "only available in the local environment"})
		return
	}
	if !h.demoEnabled || h.demo == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "demo mode must be enabled to reset demo data"})
		return
	}

	if err := h.demo.Reset(c.Request.Context()); err != nil {
		h.logger.Error("Failed to reset demo data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset demo data"})
		return
	}
	h.logger.Warn("Demo data reset")
	c.Status(http.StatusNoContent)
}
