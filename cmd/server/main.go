package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/auth"
	"github.com/anastasiosv/snake-rivals-arena/internal/config"
	"github.com/anastasiosv/snake-rivals-arena/internal/handler"
	"github.com/anastasiosv/snake-rivals-arena/internal/kafka"
	"github.com/anastasiosv/snake-rivals-arena/internal/postgres"
	"github.com/anastasiosv/snake-rivals-arena/internal/redis"
	"github.com/anastasiosv/snake-rivals-arena/internal/service"
	"github.com/anastasiosv/snake-rivals-arena/internal/websocket"
	"github.com/anastasiosv/snake-rivals-arena/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL (system of record)
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis rank mirror
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	ranks, err := redis.NewRankMirror(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer ranks.Close()
	logger.Info("connected to Redis")

	// Initialize WebSocket hub for spectators
	hub := websocket.NewHub(logger)
	go hub.Run()
	logger.Info("websocket hub initialized")

	// Initialize services
	authService := auth.NewService(repo, cfg.Auth.BcryptCost, logger)

	leaderboardService := service.NewLeaderboardService(repo, ranks, &cfg.Leaderboard, logger)
	leaderboardService.SetHub(hub)

	spectateService := service.NewSpectateService(repo, logger)
	spectateService.SetFeed(hub)

	// Rebuild the rank mirror from the database on startup (recovery)
	syncWorker := worker.NewSyncWorker(repo, ranks, &cfg.Sync, logger)
	logger.Info("rebuilding rank mirror from database")
	if err := syncWorker.SyncMirror(ctx); err != nil {
		logger.Warn("failed to rebuild rank mirror on startup", "error", err)
	}

	if cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for bulk score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, leaderboardService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		authService,
		leaderboardService,
		spectateService,
		hub,
		cfg.Server.AllowedOrigins,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	hub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := syncWorker.Stop(); err != nil {
		logger.Error("failed to stop sync worker", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
