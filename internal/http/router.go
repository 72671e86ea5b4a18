package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presence-auth/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	sessions *service.SessionService,
	authH *AuthHandler,
	presenceH *PresenceHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/signup", authH.SignUp)
	auth.POST("/signin", authH.SignIn)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/signout", authH.SignOut)
	auth.POST("/signout-all", JWTAuthMiddleware(sessions), authH.SignOutAll)

	r.GET("/me", JWTAuthMiddleware(sessions), authH.Me)

	presence := r.Group("/presence")
	presence.POST("/connect", presenceH.Connect)
	presence.POST("/disconnect", presenceH.Disconnect)
	presence.GET("/users/:id", presenceH.UserStatus)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
