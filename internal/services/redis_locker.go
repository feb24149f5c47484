package services

import (
	"context"
	"errors"
	"fmt"
	"tgmed/internal/providers"
	"tgmed/internal/structures"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockPrefix = "tgmed:lock:"
	redisLockRetry  = 25 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds a SET NX PX lock per key so that several replicas
// serialize writes to the same tgid. The lock expires after ttl if the
// holder dies.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger providers.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger providers.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := redisLockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(redisLockRetry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warnf(providers.TypeStore, "Release lock %s: %s", key, err)
		}
	}, nil
}

// NewLocker returns a RedisLocker when redis is enabled and a LocalLocker
// otherwise. The cleanup closes the redis client.
func NewLocker(conf *structures.Config, logger providers.Logger) (Locker, func(), error) {
	if !conf.Redis.Enabled {
		return NewLocalLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", conf.Redis.Addr, err)
	}
	logger.Infof(providers.TypeApp, "Using redis locks at %s", conf.Redis.Addr)

	ttl := conf.Redis.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return NewRedisLocker(client, ttl, logger), func() { _ = client.Close() }, nil
}
