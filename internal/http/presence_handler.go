package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presence-auth/internal/repository"
	"presence-auth/internal/service"
)

// PresenceHandler mantiene dependencias para endpoints de presencia.
type PresenceHandler struct {
	logger   *zap.Logger
	presence *service.PresenceService
}

// NewPresenceHandler crea una instancia de PresenceHandler.
func NewPresenceHandler(logger *zap.Logger, presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{
		logger:   logger,
		presence: presence,
	}
}

// Connect maneja POST /presence/connect.
func (h *PresenceHandler) Connect(c *gin.Context) {
	var req struct {
		ConnectionID string `json:"connection_id"`
		UserID       string `json:"user_id"`
		DeviceID     string `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	conn, err := h.presence.Connect(c.Request.Context(), service.ConnectInput{
		ConnectionID: req.ConnectionID,
		UserID:       req.UserID,
		IPAddress:    c.ClientIP(),
		DeviceID:     req.DeviceID,
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "connection already registered"})
			return
		}
		h.logger.Error("connect failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register connection"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"connection": conn})
}

// Disconnect maneja POST /presence/disconnect.
func (h *PresenceHandler) Disconnect(c *gin.Context) {
	var req struct {
		ConnectionID string `json:"connection_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	removed, err := h.presence.Disconnect(c.Request.Context(), req.ConnectionID)
	if err != nil {
		h.logger.Error("disconnect failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not disconnect"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// UserStatus maneja GET /presence/users/:id.
func (h *PresenceHandler) UserStatus(c *gin.Context) {
	userID := c.Param("id")
	online, err := h.presence.IsOnline(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("presence lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": online})
}
