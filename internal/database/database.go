package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"toolcatalog/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service owns the Postgres connection pool
type Service struct {
	db *sql.DB
}

// ConnString builds a pgx connection string from configuration
func ConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Schema,
	)
}

// New opens the connection pool
func New(cfg config.DatabaseConfig) (*Service, error) {
	db, err := sql.Open("pgx", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Service{db: db}, nil
}

// DB returns the underlying pool
func (s *Service) DB() *sql.DB {
	return s.db
}

// Health reports connection pool statistics, or the ping error
func (s *Service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

// Close closes the pool
func (s *Service) Close() error {
	return s.db.Close()
}
