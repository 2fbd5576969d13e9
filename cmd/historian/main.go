// cmd/historian/main.go drains the table action queue into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/jason-s-yu/dicetable/internal/config"
	"github.com/jason-s-yu/dicetable/internal/database"
	"github.com/jason-s-yu/dicetable/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(rdb, store, historian.Options{
		Queue:      cfg.ActionQueueName,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay,
		Inactivity: cfg.RoundInactivity,
	}, logger)

	svc.Run(ctx)
}
