package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"io.winapps.pushcast/internal/dispatch"
	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
	submitmodels "io.winapps.pushcast/internal/models/submit_notification"
)

type audienceResolver interface {
	Resolve(ctx context.Context, target broadcastmodels.TargetSpec) ([]string, error)
}

type broadcastSender interface {
	Send(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, tokens []string) (dispatch.Result, error)
}

type BroadcastHandler struct {
	resolver audienceResolver
	engine   broadcastSender
	logger   *zap.SugaredLogger
}

// NewBroadcastHandler creates a new broadcast handler
func NewBroadcastHandler(resolver audienceResolver, engine broadcastSender, logger *zap.SugaredLogger) *BroadcastHandler {
	return &BroadcastHandler{
		resolver: resolver,
		engine:   engine,
		logger:   logger,
	}
}

// SubmitNotification resolves the audience, fans the notification out, and
// returns the aggregate counts. Malformed input or an unrecognized target is
// rejected before any dispatch; per-endpoint failures never surface here.
func (h *BroadcastHandler) SubmitNotification(c *gin.Context) {
	var req submitmodels.SubmitNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := broadcastmodels.ParseTarget(req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification := broadcastmodels.NotificationRequest{Title: req.Title, Body: req.Body}
	if err := notification.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	tokens, err := h.resolver.Resolve(ctx, target)
	if err != nil {
		h.logError(c, err, "Failed to resolve audience")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve audience"})
		return
	}

	result, err := h.engine.Send(ctx, notification, target, tokens)
	if err != nil {
		var validationErr *broadcastmodels.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logError(c, err, "Broadcast dispatch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Broadcast dispatch failed"})
		return
	}

	c.JSON(http.StatusOK, submitmodels.SubmitNotificationResponse{
		Sent:    result.Sent,
		Success: result.Success,
		Failed:  result.Failed,
	})
}
