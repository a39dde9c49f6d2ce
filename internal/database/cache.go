package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	KnowledgeSnapshotKey = "knowledge:project:%s"
	SystemHealthKey      = "system:health"
)

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	return err == redis.Nil
}

// CacheKnowledgeSnapshot stores a project's raw knowledge rows. Scores are never cached
// because they depend on the message.
func (c *Cache) CacheKnowledgeSnapshot(ctx context.Context, projectID string, entries []models.KnowledgeEntry, expiration time.Duration) error {
	key := fmt.Sprintf(KnowledgeSnapshotKey, projectID)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge snapshot: %w", err)
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetCachedKnowledgeSnapshot returns redis.Nil on a miss.
func (c *Cache) GetCachedKnowledgeSnapshot(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error) {
	key := fmt.Sprintf(KnowledgeSnapshotKey, projectID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var entries []models.KnowledgeEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Cache) InvalidateKnowledgeSnapshot(ctx context.Context, projectID string) error {
	key := fmt.Sprintf(KnowledgeSnapshotKey, projectID)
	return c.client.Del(ctx, key).Err()
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	data, err := c.client.Get(ctx, SystemHealthKey).Result()
	if err != nil {
		return nil, err
	}

	var health []models.SystemHealth
	err = json.Unmarshal([]byte(data), &health)
	return health, err
}
