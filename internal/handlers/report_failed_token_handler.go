package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	reportmodels "io.winapps.pushcast/internal/models/report_failed_token"
)

// ReportFailedToken is the gateway's failure-feedback channel: it invalidates
// the endpoint regardless of any active broadcast. Invalidation is convergent,
// so unknown or already-invalid tokens report success too.
func (h *DeviceHandler) ReportFailedToken(c *gin.Context) {
	var req reportmodels.ReportFailedTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if err := h.registry.Invalidate(c.Request.Context(), req.Token); err != nil {
		h.logError(c, err, "Failed to invalidate endpoint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate endpoint"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token invalidated"})
}
