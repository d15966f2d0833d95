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

	"filegate/internal/server/api"
	"filegate/internal/server/config"
	"filegate/internal/server/database"
	"filegate/internal/server/gate"
	"filegate/internal/server/service"
	"filegate/internal/server/storage"
)

// sinkTimeout bounds a single upload to a remote sink.
const sinkTimeout = 5 * time.Minute

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"sink", cfg.SinkDriver,
		"max_file_size", cfg.MaxFileSize,
		"stats_interval", cfg.StatsInterval,
	)

	ctx := context.Background()

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize metadata store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sink, err := openSink(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob sink", "error", err)
		os.Exit(1)
	}
	slog.Info("blob sink initialized", "sink", sink.Kind())

	// Initialize gateway
	g := gate.New(cfg.Gate, cfg.AdminPassword, cfg.AdminPasswordHash)
	gw := service.NewGateway(store, sink, cfg)

	// Start stats reporter
	statsCtx, statsCancel := context.WithCancel(context.Background())
	stats := storage.NewStatsReporter(store, cfg.StatsInterval)
	stats.Start(statsCtx)

	// Setup HTTP router
	handler := api.NewHandler(gw, g, health)
	e := api.SetupRouter(handler, g, cfg.MaxFileSize)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	statsCancel()
	stats.Wait()

	slog.Info("server exited cleanly")
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openStore returns the metadata index, its health check and a close func.
func openStore(ctx context.Context, cfg *config.Config) (service.Store, api.HealthChecker, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory metadata store; data is lost on restart")
		repo := database.NewMemoryRepository()
		return repo, repo, func() {}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations complete")

	return database.NewRepository(db), db, db.Close, nil
}

func openSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	switch cfg.SinkDriver {
	case config.SinkDriverMinio:
		return storage.NewMinioSink(ctx,
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioRegion,
			cfg.MinioUseSSL,
		)
	case config.SinkDriverFileSystem:
		fs := storage.NewFileSystemSink(cfg.StoragePath)
		if err := fs.EnsureDir(); err != nil {
			return nil, err
		}
		return fs, nil
	default:
		client := &http.Client{Timeout: sinkTimeout}
		return storage.NewTelegramSink(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, client), nil
	}
}
