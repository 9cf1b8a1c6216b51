package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
	"io.winapps.pushcast/internal/stats"
)

type statsSource interface {
	TokenStats(ctx context.Context) (stats.TokenStats, error)
	RecentHistory(ctx context.Context, limit int) ([]broadcastmodels.DeliveryRecord, error)
}

type StatsHandler struct {
	aggregator statsSource
	logger     *zap.SugaredLogger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(aggregator statsSource, logger *zap.SugaredLogger) *StatsHandler {
	return &StatsHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// GetTokenStats returns the current valid endpoint counts by role
func (h *StatsHandler) GetTokenStats(c *gin.Context) {
	tokenStats, err := h.aggregator.TokenStats(c.Request.Context())
	if err != nil {
		h.logError(c, err, "Failed to get token stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get token stats"})
		return
	}

	c.JSON(http.StatusOK, tokenStats)
}
