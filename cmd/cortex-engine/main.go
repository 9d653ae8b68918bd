package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cortex-community/cortex-engine/internal/api"
	"github.com/cortex-community/cortex-engine/internal/challenge"
	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/cleanup"
	"github.com/cortex-community/cortex-engine/internal/config"
	"github.com/cortex-community/cortex-engine/internal/dedup"
	"github.com/cortex-community/cortex-engine/internal/dispatch"
	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/messages"
	"github.com/cortex-community/cortex-engine/internal/points"
	"github.com/cortex-community/cortex-engine/internal/roles"
	"github.com/cortex-community/cortex-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting cortex-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize interaction dedup store
	deduper, err := dedup.New(initCtx, dedup.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.DedupTTL,
	})
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("redis connected successfully")

	// Load message catalog
	catalog, err := messages.Load(cfg.Messages.Path)
	if err != nil {
		slog.Error("failed to load message catalog", "error", err)
		os.Exit(1)
	}

	// Chat platform gateway
	gateway := chat.NewRestGateway(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.GuildID)

	// Workflow wiring
	locks := guard.NewKeyedMutex()
	engine := challenge.NewEngine(repo, gateway, catalog, locks, cfg.Guild, cfg.Workers.Parallelism)
	lifecycle := challenge.NewLifecycle(repo, engine, gateway, catalog, locks, cfg.Guild)
	pointsSvc := points.NewService(repo, locks)
	dispatcher := dispatch.NewDispatcher(engine, lifecycle, pointsSvc, gateway, deduper, catalog, cfg.Guild)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event socket (optional; the /interactions webhook covers HTTP push)
	if cfg.Chat.SocketURL != "" {
		socket := chat.NewSocket(cfg.Chat.SocketURL, cfg.Chat.Token, func(ctx context.Context, ev chat.InteractionEvent) {
			ack := dispatcher.Dispatch(ctx, ev)
			if ack.Message == "" || ev.ChannelID == "" {
				return
			}
			if err := gateway.SendMessage(ctx, ev.ChannelID, chat.Message{Content: ack.Message}); err != nil {
				slog.Error("failed to deliver interaction reply", "channel_id", ev.ChannelID, "error", err)
			}
		})
		socket.Start(ctx)
	}

	// Background workers
	rotator := roles.NewRotator(pointsSvc, gateway, cfg.Guild.RegularRoleID, cfg.Guild.VeteranRoleID, cfg.Workers.RotationInterval)
	rotator.Start(ctx)

	purger := cleanup.NewPurger(repo, gateway, cfg.Workers.PurgeInterval, cfg.Workers.Retention)
	purger.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, lifecycle, pointsSvc, dispatcher, repo, cfg.API.AdminToken)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers and the socket
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := deduper.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}

	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("cortex-engine stopped")
}
