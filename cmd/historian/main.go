// cmd/historian/main.go is an asynchronous historian service that pops game
// actions from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/jason-s-yu/suspense/internal/cache"
	"github.com/jason-s-yu/suspense/internal/config"
	"github.com/jason-s-yu/suspense/internal/database"
	"github.com/jason-s-yu/suspense/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.WithError(err).Fatal("failed to apply schema")
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	svc := historian.NewService(
		historian.NewRedisQueue(rdb, cfg.QueueName),
		database.NewRecorder(pool),
		quartz.NewReal(),
		logger.WithField("service", "historian"),
		historian.Config{
			BatchSize:  cfg.HistorianBatchSize,
			FlushDelay: cfg.HistorianFlushDelay,
			Inactivity: cfg.GameInactivity,
		},
	)

	logger.WithField("queue", cfg.QueueName).Info("suspense-historian service started")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("historian stopped with error")
	}
	logger.Info("suspense-historian shutting down")
}
