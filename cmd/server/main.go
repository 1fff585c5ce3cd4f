package main

import (
	"betmaster/internal/account"        // Account service
	"betmaster/internal/api"            // HTTP handlers and routes
	"betmaster/internal/config"         // Configuration
	"betmaster/internal/db"             // Database connection
	"betmaster/internal/events"         // Event publishing
	"betmaster/internal/game"           // Game service
	"betmaster/internal/jobs"           // Round scheduler
	"betmaster/internal/storage/gormdb" // SQL storage
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// Main function to set up and run the server
func main() {
	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	gdb, err := db.Open(cfg.DB, cfg.App.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	// Redis is optional, without it every read goes to the database
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Broker.Brokers) > 0 {
		k, err := events.NewKafka(cfg.Broker.Brokers, cfg.Broker.Topic)
		if err != nil {
			logrus.Fatalf("failed to create event producer: %v", err)
		}
		publisher = k
	}
	defer publisher.Close()

	store := gormdb.New(gdb, cfg.Game.Limits())
	accounts := account.NewService(store, account.Options{
		InitialBalance: cfg.Game.InitialBalance,
		JWTSecret:      cfg.JWT.Secret,
		TokenTTL:       cfg.JWT.TTL,
		CacheTTL:       cfg.Redis.TTL,
	}, redisClient)
	games := game.NewService(store, game.Options{
		Limits:      cfg.Game.Limits(),
		FirstRound:  cfg.Game.FirstRound,
		LatestLimit: cfg.Game.LatestLimit,
		CacheTTL:    cfg.Redis.TTL,
	}, publisher, redisClient)

	// Set Mode to Release if in production
	if cfg.App.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(accounts, games, cfg.JWT.Secret)
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go jobs.NewScheduler(games, cfg.Game.RoundInterval).Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.App.Port).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
