package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
	registermodels "io.winapps.pushcast/internal/models/register_device"
)

type deviceRegistry interface {
	Register(ctx context.Context, token string, role broadcastmodels.Role, ownerID string) error
	Invalidate(ctx context.Context, token string) error
}

type DeviceHandler struct {
	registry deviceRegistry
	logger   *zap.SugaredLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(registry deviceRegistry, logger *zap.SugaredLogger) *DeviceHandler {
	return &DeviceHandler{
		registry: registry,
		logger:   logger,
	}
}

// RegisterDevice upserts a device endpoint; a new registration for the same
// owner supersedes any previous endpoint.
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req registermodels.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if req.OwnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}
	role, ok := broadcastmodels.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be 'passenger' or 'driver'"})
		return
	}

	if err := h.registry.Register(c.Request.Context(), req.Token, role, req.OwnerID); err != nil {
		h.logError(c, err, "Failed to register device")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device registered successfully"})
}
