package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix   = "lock:record:"
	pollInterval = 20 * time.Millisecond
	minTTL       = 30 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

type redisLocker struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis builds a Locker shared by every process talking to the same Redis.
// The ttl bounds how long a crashed holder can keep a record locked.
func NewRedis(cache *redis.Client, ttl time.Duration, logger *slog.Logger) Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	ttl = max(ttl, minTTL)
	return &redisLocker{cache: cache, ttl: ttl, logger: logger}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	cacheKey := lockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.SetNX(ctx, cacheKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(cacheKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.cache, []string{cacheKey}, token).Err(); err != nil && l.logger != nil {
				l.logger.Warn("release record lock", slog.String("key", key), slog.Any("error", err))
			}
		})
	}, nil
}

// renew keeps extending the TTL while the holder is running, so the lock only
// lapses when the holder's process dies.
func (l *redisLocker) renew(cacheKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		held, err := renewScript.Run(ctx, l.cache, []string{cacheKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			if l.logger != nil {
				l.logger.Warn("renew record lock", slog.String("key", cacheKey), slog.Any("error", err))
			}
		case held == 0:
			if l.logger != nil {
				l.logger.Error("record lock lost before release", slog.String("key", cacheKey))
			}
			return
		}
	}
}
