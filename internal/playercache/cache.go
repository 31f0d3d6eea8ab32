// Package playercache remembers the last name each player used, so results
// can name players who have already left the server.
package playercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ernie/trinity-arena/internal/domain"
)

// ErrNotFound is returned when no name is known for a player
var ErrNotFound = errors.New("player name not found")

// Cache stores last-used player names
type Cache interface {
	LastUsedName(ctx context.Context, id domain.PlayerID) (string, error)
	SetLastUsedName(ctx context.Context, id domain.PlayerID, name string) error
}

const nameTTL = 30 * 24 * time.Hour

// RedisCache keeps names under <prefix>:<id>:last_used_name, the key layout
// minqlx uses, so an existing minqlx Redis can be shared.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps a go-redis client
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Dial connects to Redis and verifies the connection
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisCache(client, prefix), nil
}

func (c *RedisCache) key(id domain.PlayerID) string {
	return fmt.Sprintf("%s:%s:last_used_name", c.prefix, id)
}

func (c *RedisCache) LastUsedName(ctx context.Context, id domain.PlayerID) (string, error) {
	name, err := c.client.Get(ctx, c.key(id)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading name of %s: %w", id, err)
	}
	return name, nil
}

func (c *RedisCache) SetLastUsedName(ctx context.Context, id domain.PlayerID, name string) error {
	if err := c.client.Set(ctx, c.key(id), name, nameTTL).Err(); err != nil {
		return fmt.Errorf("storing name of %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is the in-process fallback when no Redis is configured
type MemoryCache struct {
	mu    sync.RWMutex
	names map[domain.PlayerID]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{names: make(map[domain.PlayerID]string)}
}

func (c *MemoryCache) LastUsedName(_ context.Context, id domain.PlayerID) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (c *MemoryCache) SetLastUsedName(_ context.Context, id domain.PlayerID, name string) error {
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
	return nil
}

// Resolver adapts a Cache to the arena's synchronous name lookup
type Resolver struct {
	Cache   Cache
	Timeout time.Duration
}

// Name returns the cached name of a player. Lookup errors count as unknown.
func (r Resolver) Name(id domain.PlayerID) (string, bool) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 250 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name, err := r.Cache.LastUsedName(ctx, id)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}
