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

	"github.com/jason-s-yu/dicetable/internal/auth"
	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/jason-s-yu/dicetable/internal/config"
	"github.com/jason-s-yu/dicetable/internal/database"
	"github.com/jason-s-yu/dicetable/internal/eventloop"
	"github.com/jason-s-yu/dicetable/internal/handlers"
	"github.com/jason-s-yu/dicetable/internal/identity"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/random"
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
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := newIssuer(cfg)
	if err != nil {
		logger.Fatalf("failed to set up token issuer: %v", err)
	}

	store, err := database.Connect(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("failed to migrate schema: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	loop := eventloop.New(logger, 0)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	engine := lobby.NewEngine(lobby.Options{
		Logger:    logger,
		Scheduler: loop,
		Auth:      identity.NewGateway(store, tokens, logger),
		Ledger:    store,
		Actions:   cache.NewPublisher(rdb, cfg.ActionQueueName),
		Random:    random.New(),
		Timing: lobby.Timing{
			TurnTimeout:  cfg.TurnTimeout,
			RevealDelay:  cfg.RollRevealDelay,
			AdvanceDelay: cfg.RollAdvanceDelay,
		},
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterOptions{
			Logger:          logger,
			Engine:          engine,
			Users:           store,
			Tokens:          tokens,
			StartingBalance: cfg.StartingBalance,
			TokenExpire:     cfg.TokenExpire,
			AllowedOrigins:  cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	stopLoop()
	<-loop.Done()
}

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.LoadIssuer(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpire)
	}
	return auth.NewIssuer(cfg.TokenExpire)
}
