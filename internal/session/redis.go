package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists records as JSON with optimistic locking via WATCH/MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1

	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(rec.ID), val, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	// refresh TTL on read; failure only shortens the record's life
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return &rec, nil
}

func (s *RedisStore) Update(ctx context.Context, rec *Record) error {
	key := s.key(rec.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored Record
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return err
		}
		if stored.Version != rec.Version {
			return ErrVersionConflict
		}

		next := rec.Clone()
		next.Version++
		next.UpdatedAt = time.Now()
		newVal, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		rec.Version = next.Version
		rec.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// the key changed between WATCH and EXEC
		return ErrVersionConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
