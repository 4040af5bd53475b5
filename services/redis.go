package services

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// errRedisUnavailable is returned by every method when no server could be
// reached. Callers degrade to lockless or uncached behavior.
var errRedisUnavailable = errors.New("redis client not initialized")

// RedisService carries the advisory locks guarding quest generation and
// the Penny tip cache. It is optional infrastructure; the request path
// survives without it.
type RedisService struct {
	appContext.DefaultService
	redis *redis.Client
}

const REDIS_SVC = "redis_svc"

func (svc RedisService) Id() string {
	return REDIS_SVC
}

func (svc *RedisService) Configure(ctx *appContext.Context) error {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	svc.redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	return svc.DefaultService.Configure(ctx)
}

func (svc *RedisService) Start() error {
	if svc.redis != nil {
		if _, err := svc.redis.Ping(context.Background()).Result(); err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache and locks")
			svc.redis = nil
		}
	}
	return nil
}

// AcquireLock takes a best-effort advisory lock. The bool reports whether
// this caller owns the lock; the TTL bounds how long a crashed owner can
// hold it.
func (svc *RedisService) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if svc.redis == nil {
		return false, errRedisUnavailable
	}

	return svc.redis.SetNX(ctx, key, "1", ttl).Result()
}

func (svc *RedisService) ReleaseLock(ctx context.Context, key string) error {
	if svc.redis == nil {
		return errRedisUnavailable
	}

	return svc.redis.Del(ctx, key).Err()
}

// Get reads a cached value. A missing key is an empty string, not an
// error.
func (svc *RedisService) Get(ctx context.Context, key string) (string, error) {
	if svc.redis == nil {
		return "", errRedisUnavailable
	}

	result, err := svc.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (svc *RedisService) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if svc.redis == nil {
		return errRedisUnavailable
	}

	return svc.redis.Set(ctx, key, value, expiration).Err()
}
