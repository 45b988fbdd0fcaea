package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gibbarosa/storefront/internal/domain"
)

// maxUpdateAttempts bounds optimistic retries when other writers keep changing a cart
const maxUpdateAttempts = 32

// RedisStore keeps server-side carts in Redis with a sliding TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]domain.CartLine, error) {
	return decodeCart(s.client.Get(ctx, redisKey(key)).Bytes())
}

func (s *RedisStore) Save(ctx context.Context, key string, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update runs fn under WATCH and commits with MULTI/EXEC, retrying when the cart changed underneath
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	rk := redisKey(key)

	txf := func(tx *redis.Tx) error {
		lines, err := decodeCart(tx.Get(ctx, rk).Bytes())
		if err != nil {
			return err
		}
		next, err := fn(lines)
		if err != nil {
			return err
		}

		var data []byte
		if len(next) > 0 {
			if data, err = json.Marshal(next); err != nil {
				return fmt.Errorf("marshal cart failed: %w", err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if data == nil {
				pipe.Del(ctx, rk)
				return nil
			}
			pipe.Set(ctx, rk, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update cart %s: gave up after %d conflicting writes", key, maxUpdateAttempts)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller
func (s *RedisStore) Close() error {
	return nil
}

func decodeCart(data []byte, err error) ([]domain.CartLine, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return lines, nil
}

func redisKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
