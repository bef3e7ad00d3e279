package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

// SetNX writes value only if key is absent and reports whether this call wrote it.
func (s *Store) SetNX(ctx context.Context, key string, value interface{}) (bool, error) {
	return s.client.SetNX(ctx, key, value, 0).Result()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

// MGet returns one entry per key; missing keys come back as nil.
func (s *Store) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.client.MGet(ctx, keys...).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.client.SAdd(ctx, key, members...).Err()
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...interface{}) error {
	return s.client.SRem(ctx, key, members...).Err()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

// Tx runs fn inside MULTI/EXEC so every queued command is applied together.
func (s *Store) Tx(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	_, err := s.client.TxPipelined(ctx, fn)
	return err
}

// Watch runs fn with keys under WATCH. Writes queued through tx.TxPipelined are dropped, and
// IsTxFailed reports true, if another client touched a watched key first.
func (s *Store) Watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	return s.client.Watch(ctx, fn, keys...)
}

func (s *Store) IsTxFailed(err error) bool {
	return errors.Is(err, redis.TxFailedErr)
}

// ListPush appends to the list at key and refreshes its ttl when ttl is positive.
func (s *Store) ListPush(ctx context.Context, key string, ttl time.Duration, values ...interface{}) error {
	if len(values) == 0 {
		return nil
	}
	return s.Tx(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

// ListGetLast returns up to n trailing entries in insertion order.
func (s *Store) ListGetLast(ctx context.Context, key string, n int64) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	return s.client.LRange(ctx, key, -n, -1).Result()
}

func (s *Store) ListGetAll(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, key, 0, -1).Result()
}
