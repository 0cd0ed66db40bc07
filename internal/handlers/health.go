package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes the mailbox, prediction service, and tracker and
// reports the aggregate. Degraded dependencies answer 503 so load balancers
// and uptime checks see the outage.
func (h *Handlers) HealthCheck(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())

	statusCode := http.StatusOK
	if !report.Overall {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, report)
}
