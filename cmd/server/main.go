// Package main runs the event platform HTTP server with WebSocket signaling
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatherin/backend/config"
	"github.com/gatherin/backend/internal/auth"
	"github.com/gatherin/backend/internal/events"
	"github.com/gatherin/backend/internal/middleware"
	"github.com/gatherin/backend/internal/models"
	"github.com/gatherin/backend/internal/realtime"
	"github.com/gatherin/backend/internal/streams"
	"github.com/gatherin/backend/pkg/database"
	"github.com/gatherin/backend/pkg/redis"
	"github.com/gatherin/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it session broadcasts stay on this instance.
	var pubsub *realtime.RedisPubSub
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub = realtime.NewRedisPubSub(rdb.Client, logger)
	} else {
		logger.Info("running without Redis; single-instance broadcast only")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events (the durable record whose streaming flag the lifecycle flips)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Broadcast session history
	historyRepo := streams.NewRepository(pool)

	// Signaling core: registry and hub are owned here and injected; there is
	// no package-level state, so tests and future instances build their own.
	registry := realtime.NewRegistry(logger)
	presence := realtime.NewTracker(registry)
	var hub *realtime.Hub
	if pubsub != nil {
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	lifecycle := realtime.NewLifecycle(registry, presence, hub, eventRepo, historyRepo, logger)
	router := realtime.NewRouter(registry, presence, lifecycle, hub, logger)

	streamHandler := streams.NewHandler(registry, lifecycle, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	engine.Use(middleware.Logger(logger))

	engine.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := engine.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Public reads
	engine.GET("/api/events", eventHandler.List)
	engine.GET("/api/events/:id", eventHandler.GetByID)
	engine.GET("/api/streams", streamHandler.List)
	engine.GET("/api/streams/:id", streamHandler.GetByID)

	// Protected API (JWT required)
	api := engine.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		api.POST("/events", middleware.RequireRole(string(models.RoleOrganizer), string(models.RoleAdmin)), eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)

		api.POST("/streams", streamHandler.Create)
		api.DELETE("/streams/:id", streamHandler.End)
	}

	// WebSocket signaling (token in query; no Authorization header required)
	engine.GET("/ws", router.ServeWs(jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
