package oclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ TokenStore = &RedisTokenStore{}

// RedisTokenStore keeps the token as JSON under a single Redis key.
type RedisTokenStore struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// NewRedisTokenStore returns a store writing to key. A ttl of zero keeps the
// key forever; otherwise the key expires ttl after each save.
func NewRedisTokenStore(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, key: key, ttl: ttl}
}

// Load reads the token. A missing key is not an error.
func (s *RedisTokenStore) Load(ctx context.Context) (*Token, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &tok, nil
}

// Save overwrites the key.
func (s *RedisTokenStore) Save(ctx context.Context, tok *Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, string(b), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
