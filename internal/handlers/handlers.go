package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailbox-monitor-go/internal/health"
	"mailbox-monitor-go/internal/monitor"
	"mailbox-monitor-go/internal/prediction"
	"mailbox-monitor-go/internal/state"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	checker   *health.Checker
	store     state.Store
	scheduler *monitor.Scheduler
	predictor *prediction.Client
}

// NewHandlers creates new HTTP handlers
func NewHandlers(checker *health.Checker, store state.Store, scheduler *monitor.Scheduler, predictor *prediction.Client) *Handlers {
	return &Handlers{
		checker:   checker,
		store:     store,
		scheduler: scheduler,
		predictor: predictor,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/records", h.GetRecords)
		api.GET("/records/:message_id", h.GetRecord)

		api.GET("/assignees", h.GetAssignees)
		api.GET("/predictions/history", h.GetPredictionHistory)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
