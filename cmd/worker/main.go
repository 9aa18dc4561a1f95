// Package main runs the background alert consumer (RabbitMQ to Postgres and dashboards).
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartess/backend/config"
	"github.com/smartess/backend/internal/alerts"
	"github.com/smartess/backend/internal/realtime"
	"github.com/smartess/backend/pkg/database"
	"github.com/smartess/backend/pkg/queue"
	"github.com/smartess/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	// Without Redis the worker cannot reach server instances, so alerts are stored only.
	var events alerts.Broadcaster
	var dlq alerts.DeadLetters
	if rdb != nil {
		defer rdb.Close()
		events = realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger))
		deadLetters := queue.NewQueue(rdb.Client, queue.AlertsDLQ, logger)
		if n, err := deadLetters.Len(ctx); err == nil && n > 0 {
			logger.Warn("alert DLQ is not empty", zap.Int64("messages", n))
		}
		dlq = deadLetters
	} else {
		logger.Warn("redis not configured: alerts will not be pushed to dashboards")
	}

	consumer := alerts.NewConsumer(cfg.RabbitMQ, alerts.NewRepository(pool), events, dlq, logger)

	workerCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker started")
	if err := consumer.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("alert consumer stopped", zap.Error(err))
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
