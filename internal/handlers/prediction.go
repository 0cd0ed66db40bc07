package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailbox-monitor-go/internal/models"
)

const defaultHistoryLimit = 20

// GetAssignees proxies the prediction service's assignee roster
func (h *Handlers) GetAssignees(c *gin.Context) {
	assignees, err := h.predictor.AvailableAssignees(c.Request.Context(), c.Query("project"))
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "upstream_error",
			Message: "Prediction service request failed",
			Code:    http.StatusBadGateway,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignees": assignees})
}

// GetPredictionHistory proxies the prediction service's recent predictions
func (h *Handlers) GetPredictionHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
				Code:    http.StatusBadRequest,
			})
			return
		}
		limit = parsed
	}

	history, err := h.predictor.PredictionHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "upstream_error",
			Message: "Prediction service request failed",
			Code:    http.StatusBadGateway,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": history})
}
