package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"presence-auth/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware valida access tokens contra el session manager: además
// de la firma y la expiración exige que la sesión padre siga viva.
func JWTAuthMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := sessions.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene los claims validados desde el contexto.
func GetAuthClaims(c *gin.Context) (service.TokenClaims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.TokenClaims{}, false
	}
	claims, ok := val.(service.TokenClaims)
	return claims, ok
}
