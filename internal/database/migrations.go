package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// RunMigrations applies pending migrations from dir and logs each one applied
func RunMigrations(ctx context.Context, db *sql.DB, dir string, logger *zap.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}

	results, err := provider.Up(ctx)
	for _, res := range results {
		logger.Info("Applied migration",
			zap.Int64("version", res.Source.Version),
			zap.String("file", res.Source.Path),
			zap.Duration("duration", res.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Schema up to date", zap.Int64("version", version), zap.Int("applied", len(results)))
	return nil
}
