// Package main runs the ticketing HTTP server with WebSocket rooms and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatepass/backend/config"
	"github.com/gatepass/backend/internal/auth"
	"github.com/gatepass/backend/internal/broadcasts"
	"github.com/gatepass/backend/internal/checkin"
	"github.com/gatepass/backend/internal/deliverylogs"
	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/exports"
	"github.com/gatepass/backend/internal/fanout"
	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/internal/notifications"
	"github.com/gatepass/backend/internal/push"
	"github.com/gatepass/backend/internal/realtime"
	"github.com/gatepass/backend/internal/registrations"
	"github.com/gatepass/backend/pkg/database"
	"github.com/gatepass/backend/pkg/queue"
	"github.com/gatepass/backend/pkg/redis"
	"github.com/gatepass/backend/pkg/response"
	"github.com/gatepass/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it rooms are local to this instance and fan-out runs inline.
	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Warn("redis unavailable, running single-instance", zap.Error(err))
		rdb = nil
	}
	defer rdb.Close()

	var hub *realtime.Hub
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Repositories
	authRepo := auth.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	pushRepo := push.NewRepository(pool)
	broadcastRepo := broadcasts.NewRepository(pool)
	deliveryRepo := deliverylogs.NewRepository(pool)

	// Identity
	resolver := identity.NewResolver(authRepo)
	healer := identity.NewHealer(registrationRepo, logger)
	authHandler := auth.NewHandler(authRepo, jwtService, healer, logger)

	// Fan-out
	engine := fanout.NewEngine(fanout.Deps{
		Registrations: registrationRepo,
		Events:        eventRepo,
		Identity:      resolver,
		Inbox:         notificationRepo,
		Rooms:         hub,
		Tokens:        pushRepo,
		Gateway:       push.NewClient(cfg.Push.GatewayURL, cfg.Push.AccessToken, time.Duration(cfg.Push.TimeoutSec)*time.Second),
		Audit:         broadcastRepo,
		Deliveries:    deliveryRepo,
	}, cfg.FanOut.ChunkSize, logger)
	inline := fanout.NewInlineDispatcher(engine)
	engine.UseDispatcher(inline)
	if cfg.FanOut.Mode == config.FanOutModeQueue {
		if rdb != nil {
			engine.UseDispatcher(fanout.NewQueueDispatcher(queue.NewQueue(rdb.Client, logger), inline, logger))
			logger.Info("fan-out dispatching to queue", zap.String("queue", queue.QueueFanOut))
		} else {
			logger.Warn("FANOUT_MODE=queue needs redis, delivering inline")
		}
	}

	// Registrations and check-in
	registrationSvc := registrations.NewService(registrationRepo, eventRepo, engine, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, registrationRepo, logger)
	checkinHandler := checkin.NewHandler(checkin.NewProtocol(registrationRepo, registrationSvc, logger), registrationRepo)

	eventHandler := events.NewHandler(eventRepo, registrationRepo, logger)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)
	pushHandler := push.NewHandler(pushRepo, logger)
	broadcastHandler := broadcasts.NewHandler(engine, broadcastRepo, logger)
	deliveryHandler := deliverylogs.NewHandler(deliveryRepo)

	// Check-in report export (S3)
	var exporter *exports.Exporter
	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ExportsBucket:        cfg.AWS.ExportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	if s3Cfg.Enabled() {
		s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			exporter = exports.NewExporter(registrationRepo, s3Client, logger)
		}
	}
	exportHandler := exports.NewHandler(exporter, logger)

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	canWatch := func(ctx context.Context, userID, eventID uuid.UUID) bool {
		e, err := eventRepo.GetByID(ctx, eventID)
		return err == nil && e.OrganizerID == userID
	}
	scanLimiter := middleware.NewTokenBucket(0, cfg.RateLimit.ScanPerMinute)
	organizerOf := events.RequireOrganizer(eventRepo)
	gatekeepers := middleware.RequireRole(models.RoleOrganizer, models.RoleVerifier)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/metrics"))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "redis": rdb.Healthy(c.Request.Context())})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public: registration works for guests; a valid token attaches the account
	router.POST("/events/:id/register", middleware.OptionalJWT(jwtService), registrationHandler.Register)

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Events
		api.POST("/events", middleware.RequireRole(models.RoleOrganizer), eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.GET("/me/events", eventHandler.ListMine)
		api.GET("/me/registrations", registrationHandler.ListMine)

		// Organizer of the event
		api.GET("/events/:id/registrations", organizerOf, registrationHandler.ListByEvent)
		api.POST("/events/:id/registrations/bulk", organizerOf, registrationHandler.Bulk)
		api.POST("/events/:id/broadcasts", organizerOf, broadcastHandler.Send)
		api.GET("/events/:id/broadcasts", organizerOf, broadcastHandler.List)
		api.GET("/events/:id/deliveries", organizerOf, deliveryHandler.ListByEvent)
		api.GET("/events/:id/stats", organizerOf, eventHandler.Stats)
		api.POST("/events/:id/exports/checkins", organizerOf, exportHandler.CheckIns)

		// Lifecycle
		api.POST("/registrations/:id/transition", registrationHandler.Transition)
		api.POST("/scan", gatekeepers, scanLimiter.PerIP(), checkinHandler.Scan)
		api.POST("/registrations/:id/check-in", gatekeepers, checkinHandler.CheckIn)
		api.POST("/registrations/:id/check-out", gatekeepers, checkinHandler.CheckOut)
		api.GET("/registrations/:id/check-ins", gatekeepers, checkinHandler.Trail)

		// Inbox and devices
		api.GET("/me/notifications", notificationHandler.List)
		api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/me/notifications/read-all", notificationHandler.MarkAllRead)
		api.POST("/me/push-tokens", pushHandler.Register)
		api.DELETE("/me/push-tokens/:token", pushHandler.Remove)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, canWatch))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("fanout_mode", cfg.FanOut.Mode))
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
	if err := inline.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight fan-out did not finish", zap.Error(err))
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
