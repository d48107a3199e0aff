package httpserver

import (
	"errors"
	"net/http"

	"docnest/internal/reminder"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerStatus is the view of the reminder scheduler the health server reports.
type SchedulerStatus interface {
	State() reminder.State
	LastTick() *reminder.TickReport
}

// NewHealthRouter serves the worker's probes, scheduler status and metrics.
func NewHealthRouter(store Pinger, scheduler SchedulerStatus) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	registerHealth(r, store, func() error {
		if scheduler.State() == reminder.StateStopped {
			return errors.New("reminder scheduler stopped")
		}
		return nil
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		resp := gin.H{"scheduler": scheduler.State().String()}
		if tick := scheduler.LastTick(); tick != nil {
			last := gin.H{
				"trace_id":    tick.TraceID,
				"started_at":  tick.StartedAt,
				"duration_ms": tick.Duration.Milliseconds(),
				"dispatched":  tick.Result.Dispatch.Dispatched,
				"failed":      tick.Result.Dispatch.Failed,
				"created":     tick.Result.Materialize.Created,
			}
			if tick.Err != nil {
				last["error"] = tick.Err.Error()
			}
			resp["last_tick"] = last
		}
		c.JSON(http.StatusOK, resp)
	})

	return r
}
