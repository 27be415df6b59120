package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toolcatalog/internal/cache"
	"toolcatalog/internal/config"
	"toolcatalog/internal/database"
	"toolcatalog/internal/logger"
	"toolcatalog/internal/server"
	"toolcatalog/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Catalog API stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Graceful shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting tool catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	log.Info("Database health check", zap.Any("health", dbService.Health()))

	if err := database.RunMigrations(startCtx, dbService.DB(), cfg.Database.MigrationsDir, log); err != nil {
		dbService.Close()
		return err
	}

	images, err := storage.NewMinioImageStore(cfg.Storage)
	if err != nil {
		dbService.Close()
		return err
	}
	if err := images.EnsureBucket(startCtx); err != nil {
		dbService.Close()
		return fmt.Errorf("failed to prepare bucket %s: %w", cfg.Storage.Bucket, err)
	}

	redisClient := connectRedis(startCtx, cfg.Redis, log)

	srv := server.NewServer(cfg, log, dbService.DB(), redisClient, images)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		srv.Close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	return srv.Close()
}

// connectRedis returns nil when Redis is unreachable; the API then serves
// without the category cache and without rate limiting.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("Redis unavailable, category cache and rate limiting disabled", zap.Error(err))
		return nil
	}
	return client
}
