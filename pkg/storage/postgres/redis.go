package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
)

const defaultAbilityTTL = 24 * time.Hour

// RedisConfig configures the organization ability cache
type RedisConfig struct {
	URL        string
	PoolSize   int
	AbilityTTL time.Duration
}

// AbilityCache stores organization abilities in Redis. It implements
// orgs.AbilityCache.
type AbilityCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewAbilityCache connects to Redis and verifies the connection
func NewAbilityCache(config RedisConfig, metrics *observability.Metrics) (*AbilityCache, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.AbilityTTL
	if ttl <= 0 {
		ttl = defaultAbilityTTL
	}
	return &AbilityCache{client: client, ttl: ttl, metrics: metrics}, nil
}

func abilityKey(orgID uuid.UUID) string {
	return "org-ability:" + orgID.String()
}

// GetOrganizationAbility returns the cached ability of orgID, or nil on a miss
func (c *AbilityCache) GetOrganizationAbility(ctx context.Context, orgID uuid.UUID) (*orgs.Ability, error) {
	key := abilityKey(orgID)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheOperation("miss", nil)
		return nil, nil
	}
	if err != nil {
		c.metrics.RecordCacheOperation("get", err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var ability orgs.Ability
	if err := json.Unmarshal(data, &ability); err != nil {
		// Corrupt entries are dropped so the next upsert repopulates them
		c.client.Del(ctx, key)
		c.metrics.RecordCacheOperation("get", err)
		return nil, fmt.Errorf("failed to unmarshal organization ability: %w", err)
	}
	c.metrics.RecordCacheOperation("hit", nil)
	return &ability, nil
}

// UpsertOrganizationAbility caches ability for the configured TTL
func (c *AbilityCache) UpsertOrganizationAbility(ctx context.Context, ability orgs.Ability) error {
	data, err := json.Marshal(ability)
	if err != nil {
		return fmt.Errorf("failed to marshal organization ability: %w", err)
	}
	err = c.client.Set(ctx, abilityKey(ability.ID), data, c.ttl).Err()
	c.metrics.RecordCacheOperation("set", err)
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// DeleteOrganizationAbility evicts the organization's ability
func (c *AbilityCache) DeleteOrganizationAbility(ctx context.Context, orgID uuid.UUID) error {
	err := c.client.Del(ctx, abilityKey(orgID)).Err()
	c.metrics.RecordCacheOperation("delete", err)
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *AbilityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying client for health checks
func (c *AbilityCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *AbilityCache) Close() error {
	return c.client.Close()
}

// NopAbilityCache discards abilities. It is used when no Redis URL is
// configured.
type NopAbilityCache struct{}

// GetOrganizationAbility always misses
func (NopAbilityCache) GetOrganizationAbility(context.Context, uuid.UUID) (*orgs.Ability, error) {
	return nil, nil
}

// UpsertOrganizationAbility does nothing
func (NopAbilityCache) UpsertOrganizationAbility(context.Context, orgs.Ability) error { return nil }

// DeleteOrganizationAbility does nothing
func (NopAbilityCache) DeleteOrganizationAbility(context.Context, uuid.UUID) error { return nil }
