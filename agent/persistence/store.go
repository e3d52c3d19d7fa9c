package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for an unknown session, chat or summary.
	ErrNotFound = errors.New("not found")
	// ErrStoreClosed is returned by every call after Close.
	ErrStoreClosed = errors.New("store is closed")
	// ErrInvalidInput rejects messages or sessions without their ids.
	ErrInvalidInput = errors.New("invalid input")
)

// Store is what the session and message stores share: the readiness probe
// pings them and the app closes them on shutdown.
type Store interface {
	Close() error
	Ping(ctx context.Context) error
}

// StoreType selects where sessions live.
type StoreType string

const (
	// StoreTypeMemory loses sessions on restart. Used by the chat command
	// and single-replica deployments.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeRedis shares sessions between API replicas.
	StoreTypeRedis StoreType = "redis"
)

type StoreConfig struct {
	Type  StoreType        `json:"type" yaml:"type"`
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`
	// SessionTTL expires idle Redis sessions. Zero keeps them.
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl"`
}

type RedisStoreConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// NewSessionStore builds the configured backend. An empty type means
// memory.
func NewSessionStore(config StoreConfig) (SessionStore, error) {
	switch config.Type {
	case "", StoreTypeMemory:
		return NewMemorySessionStore(), nil
	case StoreTypeRedis:
		return NewRedisSessionStore(config)
	}
	return nil, fmt.Errorf("unsupported session store type: %q", config.Type)
}

// NewMessageStore keeps history in the database, or in memory when db is
// nil as in tests.
func NewMessageStore(db *gorm.DB) MessageStore {
	if db == nil {
		return NewMemoryMessageStore()
	}
	return NewGormMessageStore(db)
}
