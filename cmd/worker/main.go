// Package main runs the background fan-out worker (FANOUT_MODE=queue).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gatepass/backend/config"
	"github.com/gatepass/backend/internal/auth"
	"github.com/gatepass/backend/internal/broadcasts"
	"github.com/gatepass/backend/internal/deliverylogs"
	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/fanout"
	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/notifications"
	"github.com/gatepass/backend/internal/push"
	"github.com/gatepass/backend/internal/realtime"
	"github.com/gatepass/backend/internal/registrations"
	"github.com/gatepass/backend/internal/worker"
	"github.com/gatepass/backend/pkg/database"
	"github.com/gatepass/backend/pkg/queue"
	"github.com/gatepass/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// The worker never holds sockets; room events are published for the API instances to deliver.
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger), nil)

	registrationRepo := registrations.NewRepository(pool)
	engine := fanout.NewEngine(fanout.Deps{
		Registrations: registrationRepo,
		Events:        events.NewRepository(pool),
		Identity:      identity.NewResolver(auth.NewRepository(pool)),
		Inbox:         notifications.NewRepository(pool),
		Rooms:         hub,
		Tokens:        push.NewRepository(pool),
		Gateway:       push.NewClient(cfg.Push.GatewayURL, cfg.Push.AccessToken, time.Duration(cfg.Push.TimeoutSec)*time.Second),
		Audit:         broadcasts.NewRepository(pool),
		Deliveries:    deliverylogs.NewRepository(pool),
	}, cfg.FanOut.ChunkSize, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewFanOutProcessor(engine, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.String("queue", queue.QueueFanOut), zap.Int("chunk_size", cfg.FanOut.ChunkSize))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(queue.PopTimeout + 10*time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
