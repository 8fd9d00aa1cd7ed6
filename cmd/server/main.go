// Package main runs the study platform HTTP server with the researcher live
// feed and graceful shutdown.
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

	"github.com/vidswitch/backend/config"
	"github.com/vidswitch/backend/internal/analytics"
	"github.com/vidswitch/backend/internal/auth"
	"github.com/vidswitch/backend/internal/events"
	"github.com/vidswitch/backend/internal/exports"
	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/participants"
	"github.com/vidswitch/backend/internal/realtime"
	"github.com/vidswitch/backend/internal/sessions"
	"github.com/vidswitch/backend/internal/videos"
	"github.com/vidswitch/backend/internal/worker"
	"github.com/vidswitch/backend/pkg/database"
	"github.com/vidswitch/backend/pkg/queue"
	"github.com/vidswitch/backend/pkg/redis"
	"github.com/vidswitch/backend/pkg/response"
	"github.com/vidswitch/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Researcher accounts
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, cfg.Study.SetupKey, logger)

	// Participants
	participantRepo := participants.NewRepository(pool)
	participantHandler := participants.NewHandler(participantRepo, jwtService, logger)

	// Video catalog
	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, participantRepo, videoRepo, logger)

	// Event ingestion (publishes to the live feed)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, sessionRepo, participantRepo, hub, logger)

	// Analytics (redis-cached overview)
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo, participantRepo,
		rdb.Client, time.Duration(cfg.Study.StatsCacheSeconds)*time.Second, logger)

	// Exports (sync CSV + async S3 jobs)
	exportRepo := exports.NewRepository(pool)
	generator := exports.NewGenerator(eventRepo, sessionRepo, participantRepo)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	exportHandler := exports.NewHandler(exportRepo, generator, jobQueue, s3Client, logger)
	exportProcessor := worker.NewExportProcessor(exportRepo, generator, s3Client, jobQueue, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}
	router.POST("/participants/login", participantHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Participants
		api.GET("/participants/me", participantHandler.Me)
		api.GET("/participants", middleware.RequireRole(models.RoleResearcher), participantHandler.List)
		api.POST("/participants", middleware.RequireRole(models.RoleResearcher), participantHandler.Create)

		// Video catalog
		api.GET("/videos", videoHandler.List)

		// Sessions
		api.POST("/sessions/start", sessionHandler.Start)
		api.PUT("/sessions/:id/complete", sessionHandler.Complete)
		api.GET("/sessions/mine", sessionHandler.Mine)
		api.GET("/sessions", middleware.RequireRole(models.RoleResearcher), sessionHandler.ListAll)

		// Event ingestion and queries
		api.POST("/events/track", eventHandler.Track)
		api.POST("/events/track-batch", eventHandler.TrackBatch)
		api.GET("/events/session/:id", eventHandler.SessionEvents)
		api.GET("/events", middleware.RequireRole(models.RoleResearcher), eventHandler.ListAll)

		// Analytics (researcher only)
		api.GET("/analytics/stats", middleware.RequireRole(models.RoleResearcher), analyticsHandler.GetStats)
		api.GET("/analytics/participants/:participantId", middleware.RequireRole(models.RoleResearcher), analyticsHandler.GetParticipantStats)
		api.GET("/analytics/export", middleware.RequireRole(models.RoleResearcher), exportHandler.Download)

		// Export jobs (researcher only)
		api.POST("/exports", middleware.RequireRole(models.RoleResearcher), exportHandler.Create)
		api.GET("/exports", middleware.RequireRole(models.RoleResearcher), exportHandler.List)
		api.GET("/exports/:id", middleware.RequireRole(models.RoleResearcher), exportHandler.Get)
		api.GET("/exports/:id/download-url", middleware.RequireRole(models.RoleResearcher), exportHandler.DownloadURL)
	}

	// WebSocket live feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process export worker when S3 is configured (cmd/worker runs it standalone)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go exportProcessor.Run(workerCtx)
		logger.Info("export worker started")
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

	workerCancel()
	hub.Close()
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
