package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"presence-auth/internal/config"
	"presence-auth/internal/db"
	"presence-auth/internal/event"
	apihttp "presence-auth/internal/http"
	"presence-auth/internal/repository"
	"presence-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo    repository.UserRepository
		sessionRepo repository.SessionRepository
		connRepo    repository.ConnectionRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		userRepo = repository.NewPgUserRepository(pool)
		sessionRepo = repository.NewPgSessionRepository(pool)
		connRepo = repository.NewPgConnectionRepository(pool)
	} else {
		logger.Warn("database not configured, using in-memory stores")
		userRepo = repository.NewMemoryUserRepository()
		sessionRepo = repository.NewMemorySessionRepository()
		connRepo = repository.NewMemoryConnectionRepository()
	}

	var publisher event.Publisher = event.NewMemoryPublisher()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			publisher = event.NewRedisPublisher(redisClient)
		}
		cancel()
	}

	tokenSvc := service.NewTokenService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
	)
	userSvc := service.NewUserService(logger, userRepo)
	sessionSvc := service.NewSessionService(logger, userSvc, sessionRepo, tokenSvc, publisher, cfg.MaxSessionsPerUser)
	presenceSvc := service.NewPresenceService(logger, connRepo, userRepo, publisher)

	// Las conexiones registradas por un proceso anterior se presumen
	// muertas: se procesan como desconexiones normales para que las
	// transiciones de presencia queden consistentes.
	if err := presenceSvc.DisconnectAll(ctx); err != nil {
		logger.Warn("startup connection sweep failed", zap.Error(err))
	}

	authHandler := apihttp.NewAuthHandler(logger, sessionSvc, userSvc)
	presenceHandler := apihttp.NewPresenceHandler(logger, presenceSvc)
	router := apihttp.NewRouter(logger, sessionSvc, authHandler, presenceHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
