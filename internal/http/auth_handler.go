package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presence-auth/internal/domain"
	"presence-auth/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticación.
type AuthHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
	users    *service.UserService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, sessions *service.SessionService, users *service.UserService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
		users:    users,
	}
}

// SignUp maneja POST /auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, sess, err := h.sessions.SignUp(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": vErr.Fields})
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign up"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "session": sessionResponse(sess)})
}

// SignIn maneja POST /auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signin request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, sess, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("signin failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "session": sessionResponse(sess)})
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(sess)})
}

// SignOut maneja POST /auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Error("signout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign out"})
		return
	}

	c.Status(http.StatusNoContent)
}

// SignOutAll maneja POST /auth/signout-all. Requiere access token válido.
func (h *AuthHandler) SignOutAll(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}

	revoked, err := h.sessions.SignOutAll(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("signout all failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign out"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}

// Me maneja GET /me. Requiere access token válido.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func sessionResponse(sess domain.Session) gin.H {
	return gin.H{
		"id":                 sess.ID,
		"access_token":       sess.AccessToken,
		"refresh_token":      sess.RefreshToken,
		"access_expires_at":  sess.AccessExpiresAt,
		"refresh_expires_at": sess.RefreshExpiresAt,
	}
}
