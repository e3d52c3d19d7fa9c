package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Each session is a hash: user_id, chat_id, user_messages, updated_at.
var (
	nextChatScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local id = redis.call('HINCRBY', KEYS[1], 'chat_id', 1)
redis.call('HSET', KEYS[1], 'user_messages', 0, 'updated_at', ARGV[1])
if tonumber(ARGV[2]) > 0 then redis.call('PEXPIRE', KEYS[1], ARGV[2]) end
return id
`)

	incrMessagesScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local n = redis.call('HINCRBY', KEYS[1], 'user_messages', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
if tonumber(ARGV[2]) > 0 then redis.call('PEXPIRE', KEYS[1], ARGV[2]) end
return n
`)
)

// RedisSessionStore keeps session counters in Redis so several API
// replicas agree on the current chat id.
type RedisSessionStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSessionStore dials Redis and verifies the connection.
func NewRedisSessionStore(config StoreConfig) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSessionStoreWithClient(client, config.Redis.KeyPrefix, config.SessionTTL), nil
}

// NewRedisSessionStoreWithClient wraps an existing client.
func NewRedisSessionStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "sunyadvisor:"
	}
	return &RedisSessionStore{client: client, keyPrefix: keyPrefix + "session:", ttl: ttl}
}

func (s *RedisSessionStore) key(sessionID string) string { return s.keyPrefix + sessionID }

// Close closes the client.
func (s *RedisSessionStore) Close() error { return s.client.Close() }

// Ping checks if the store is healthy
func (s *RedisSessionStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisSessionStore) now() string { return strconv.FormatInt(time.Now().UnixMilli(), 10) }

// Ensure implements SessionStore.
func (s *RedisSessionStore) Ensure(ctx context.Context, sessionID, userID string) (*SessionState, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}
	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "user_id", userID)
		pipe.HSetNX(ctx, key, "chat_id", FirstChatID)
		pipe.HSetNX(ctx, key, "user_messages", 0)
		pipe.HSet(ctx, key, "updated_at", s.now())
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	return s.Get(ctx, sessionID)
}

// Get implements SessionStore.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*SessionState, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	st := &SessionState{SessionID: sessionID, UserID: fields["user_id"]}
	if st.ChatID, err = strconv.ParseInt(fields["chat_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt chat_id for session %s: %w", sessionID, err)
	}
	st.UserMessages, _ = strconv.ParseInt(fields["user_messages"], 10, 64)
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		st.UpdatedAt = time.UnixMilli(ms)
	}
	return st, nil
}

func (s *RedisSessionStore) run(ctx context.Context, script *redis.Script, sessionID string) (int64, error) {
	n, err := script.Run(ctx, s.client, []string{s.key(sessionID)}, s.now(), s.ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// NextChat implements SessionStore.
func (s *RedisSessionStore) NextChat(ctx context.Context, sessionID string) (int64, error) {
	return s.run(ctx, nextChatScript, sessionID)
}

// IncrUserMessages implements SessionStore.
func (s *RedisSessionStore) IncrUserMessages(ctx context.Context, sessionID string) (int64, error) {
	return s.run(ctx, incrMessagesScript, sessionID)
}
