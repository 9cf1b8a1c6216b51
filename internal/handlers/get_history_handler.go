package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	historymodels "io.winapps.pushcast/internal/models/get_history"
)

// GetHistory returns recent delivery records, most recent first
func (h *StatsHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records, err := h.aggregator.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		h.logError(c, err, "Failed to get delivery history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get delivery history"})
		return
	}

	c.JSON(http.StatusOK, historymodels.GetHistoryResponse{Records: records})
}
