package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/repository"
)

// DefaultTokenKey is used when no key is configured.
const DefaultTokenKey = "aliexpress:token"

// RedisTokenStore implements TokenBackup backed by Redis.
type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

var _ repository.TokenBackup = (*RedisTokenStore)(nil)

// NewRedisTokenStore constructs a Redis-backed token backup.
func NewRedisTokenStore(client redis.UniversalClient, key string) *RedisTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Name() string {
	return "redis"
}

// WriteToken stores the record without expiry; a stale record is still needed for its refresh token.
func (s *RedisTokenStore) WriteToken(ctx context.Context, record domain.TokenRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// ReadToken loads and decodes the stored record.
func (s *RedisTokenStore) ReadToken(ctx context.Context) (*domain.TokenRecord, error) {
	bytes, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	var record domain.TokenRecord
	if err := json.Unmarshal(bytes, &record); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &record, nil
}
