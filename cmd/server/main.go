// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/suspense/internal/auth"
	"github.com/jason-s-yu/suspense/internal/cache"
	"github.com/jason-s-yu/suspense/internal/config"
	"github.com/jason-s-yu/suspense/internal/database"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/handlers"
	"github.com/jason-s-yu/suspense/internal/hub"
	"github.com/jason-s-yu/suspense/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.WithError(err).Fatal("failed to initialize auth keys")
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()
	kv := store.NewRedisStore(rdb, "suspense:")

	managerCfg := game.ManagerConfig{
		Sessions:    &store.Sessions{Store: kv, TTL: cfg.SessionTTL},
		Players:     &store.Players{Store: kv, TTL: cfg.SessionTTL},
		TurnTimeout: cfg.TurnTimeout(),
		Logger:      logger,
		Actions:     cache.NewPublisher(rdb, cfg.QueueName),
	}

	// Postgres is optional; without it finished games are only logged.
	if cfg.DatabaseURL != "" {
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.WithError(err).Fatal("failed to apply schema")
		}
		managerCfg.Results = database.NewRecorder(pool)
	} else {
		logger.Warn("DATABASE_URL not set, game results will not be stored")
	}

	h := hub.New(logger)
	managerCfg.Channel = h
	manager := game.NewManager(managerCfg)
	srv := handlers.NewServer(manager, h, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server exited")
	}

	manager.Close()
	logger.Info("server stopped")
}
