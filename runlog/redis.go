package runlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists run records in a Redis list, newest first.
type RedisStore struct {
	client *redis.Client
	key    string
	maxLen int64
}

// RedisConfig holds Redis connection settings for the run log.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // list key, defaults to "askdata:runlog"
	MaxLen   int64  // list is trimmed to this length, 0 means unbounded
}

// NewRedisStore creates a Redis-backed run log.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{Addr: "localhost:6379"}
	}
	key := config.Key
	if key == "" {
		key = "askdata:runlog"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisStore{client: client, key: key, maxLen: config.MaxLen}
}

// Append pushes the record onto the head of the list and trims to MaxLen.
func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("push run record: %w", err)
	}
	if s.maxLen > 0 {
		if err := s.client.LTrim(ctx, s.key, 0, s.maxLen-1).Err(); err != nil {
			return fmt.Errorf("trim run log: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
