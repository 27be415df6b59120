package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"toolcatalog/internal/config"
	"toolcatalog/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	categoryCountsKey    = "categories:counts"
	categoryCountsVerKey = "categories:counts:version"
)

func countsKey(version int64) string {
	return fmt.Sprintf("%s:%d", categoryCountsKey, version)
}

// NewRedisClient opens a Redis client and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

type categoryCountEntry struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Count int       `json:"count"`
}

// CategoryCountCache caches the category listing with product counts. Entries are keyed
// by a version that Invalidate bumps, so a listing read before a write commits can only
// be stored under a version no reader asks for any more.
type CategoryCountCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCategoryCountCache(client redis.Cmdable, ttl time.Duration) *CategoryCountCache {
	return &CategoryCountCache{client: client, ttl: ttl}
}

// Get returns the cached listing and the current version; ok is false on a miss.
// Pass version to Set when filling the miss.
func (c *CategoryCountCache) Get(ctx context.Context) (counts []domain.CategoryCount, version int64, ok bool, err error) {
	version, err = c.client.Get(ctx, categoryCountsVerKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("failed to read category cache version: %w", err)
	}

	raw, err := c.client.Get(ctx, countsKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read category cache: %w", err)
	}

	var entries []categoryCountEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode category cache: %w", err)
	}

	counts = make([]domain.CategoryCount, 0, len(entries))
	for _, e := range entries {
		counts = append(counts, domain.CategoryCount{ID: e.ID, Name: e.Name, Count: e.Count})
	}
	return counts, version, true, nil
}

// Set stores counts under version, as returned by the Get that missed
func (c *CategoryCountCache) Set(ctx context.Context, version int64, counts []domain.CategoryCount) error {
	entries := make([]categoryCountEntry, 0, len(counts))
	for _, cc := range counts {
		entries = append(entries, categoryCountEntry{ID: cc.ID, Name: cc.Name, Count: cc.Count})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode category cache: %w", err)
	}

	if err := c.client.Set(ctx, countsKey(version), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write category cache: %w", err)
	}
	return nil
}

// Invalidate moves readers to a new version; entries under older versions expire on their own
func (c *CategoryCountCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, categoryCountsVerKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate category cache: %w", err)
	}
	return nil
}
