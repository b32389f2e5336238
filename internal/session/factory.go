package session

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"

	defaultTTL       = 24 * time.Hour
	defaultKeyPrefix = "interview:"
)

// NewStore creates a Store of the given type. Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{ttl: defaultTTL, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultTTL
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(cfg.ttl), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.ttl, cfg.keyPrefix), nil
	default:
		return nil, ErrInvalidStoreType
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}
