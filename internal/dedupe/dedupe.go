// Package dedupe remembers Telegram payment charge ids so a repeated
// successful_payment notice is acknowledged without a second delivery.
package dedupe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a charge id is remembered.
const DefaultTTL = 72 * time.Hour

// Guard tracks processed charge ids.
type Guard interface {
	// Seen reports whether id was remembered earlier.
	Seen(ctx context.Context, id string) (bool, error)
	// Remember marks id as processed.
	Remember(ctx context.Context, id string) error
}

// Memory is an in-process Guard.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemory returns a Memory guard; ttl <= 0 selects DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

// Seen implements Guard.
func (m *Memory) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.seen[id]
	if !ok {
		return false, nil
	}
	if m.now().After(exp) {
		delete(m.seen, id)
		return false, nil
	}
	return true, nil
}

// Remember implements Guard. Expired entries are pruned on the way.
func (m *Memory) Remember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.seen {
		if now.After(exp) {
			delete(m.seen, k)
		}
	}
	m.seen[id] = now.Add(m.ttl)
	return nil
}

// RedisConfig defines connection parameters for Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix"`
	TTLHours int    `yaml:"ttl_hours"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// Redis is a Guard shared by every bot replica.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client; keys are stored as prefix+id.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "videoshop:charge:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis builds a client from cfg and verifies connectivity.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(client, cfg.Prefix, time.Duration(cfg.TTLHours)*time.Hour), nil
}

// Seen implements Guard.
func (r *Redis) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Remember implements Guard.
func (r *Redis) Remember(ctx context.Context, id string) error {
	if err := r.client.SetNX(ctx, r.prefix+id, time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// Ping verifies connectivity for readiness checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
