package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailbox-monitor-go/internal/models"
)

const defaultRecordLimit = 50

// GetRecords returns recent processing records, newest first
func (h *Handlers) GetRecords(c *gin.Context) {
	limit := defaultRecordLimit
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

	records, err := h.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "store_error",
			Message: "Failed to fetch processing records",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if records == nil {
		records = []models.ProcessingRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// GetRecord returns the processing record for a single message ID
func (h *Handlers) GetRecord(c *gin.Context) {
	record, err := h.store.Get(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "store_error",
			Message: "Failed to fetch processing record",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No processing record for this message",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, record)
}
