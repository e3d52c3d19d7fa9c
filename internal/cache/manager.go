package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cache manager is closed")

// Config configures the Redis-backed cache.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	DefaultTTL   time.Duration `yaml:"default_ttl" json:"default_ttl"`
}

// FromRedisConfig maps the application's redis section.
func FromRedisConfig(rc config.RedisConfig, keyPrefix string, ttl time.Duration) Config {
	return Config{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		KeyPrefix:    keyPrefix,
		DefaultTTL:   ttl,
	}
}

// Manager is a namespaced string/JSON cache on Redis.
type Manager struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewManager dials Redis and verifies the connection.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	m := NewManagerWithClient(client, cfg.KeyPrefix, cfg.DefaultTTL, logger)
	m.logger.Info("cache manager initialized", zap.String("addr", cfg.Addr))
	return m, nil
}

// NewManagerWithClient wraps an existing client. A zero ttl means keys
// never expire.
func NewManagerWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cache")),
	}
}

func (m *Manager) key(k string) string { return m.prefix + k }

func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	val, err := m.client.Get(ctx, m.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores value; ttl 0 uses the manager default.
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if ttl == 0 {
		ttl = m.ttl
	}
	if err := m.client.Set(ctx, m.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.Set(ctx, key, string(data), ttl)
}

func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.key(k)
	}
	if err := m.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return m.client.Ping(ctx).Err()
}

// Close closes the client. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.client.Close()
}

// IsCacheMiss reports whether err is a miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// HashKey builds a fixed-length key from parts.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
