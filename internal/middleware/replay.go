package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	replayPrefix        = "sig:seen:"
	defaultReplayWindow = 10 * time.Minute
	signatureLocal      = "signature"
)

type signatureStore interface {
	// claim records sig and reports whether it had not been seen before.
	claim(ctx context.Context, sig string, window time.Duration) (bool, error)
}

type redisSignatures struct {
	cache *redis.Client
}

func (s redisSignatures) claim(ctx context.Context, sig string, window time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, replayPrefix+sig, 1, window).Result()
}

type memorySignatures struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func (s *memorySignatures) claim(_ context.Context, sig string, window time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.expires[sig]; ok && now.Before(exp) {
		return false, nil
	}
	if len(s.expires) >= 4096 {
		for k, exp := range s.expires {
			if !now.Before(exp) {
				delete(s.expires, k)
			}
		}
	}
	s.expires[sig] = now.Add(window)
	return true, nil
}

// ReplayGuard rejects a signed request whose signature was already used.
// The window must cover every timestamp SignatureAuth still accepts, so pass
// at least twice the allowed skew. Signatures are remembered in Redis, or in
// process memory when cache is nil.
//
// Mount it after Idempotency: a retry that reuses its Idempotency-Key gets the
// stored response before reaching the guard.
func ReplayGuard(cache *redis.Client, window time.Duration, logger *slog.Logger) fiber.Handler {
	if window <= 0 {
		window = defaultReplayWindow
	}
	var store signatureStore
	if cache != nil {
		store = redisSignatures{cache: cache}
	} else {
		store = &memorySignatures{expires: make(map[string]time.Time)}
	}
	return func(c *fiber.Ctx) error {
		sig, _ := c.Locals(signatureLocal).(string)
		if sig == "" {
			return fiber.NewError(http.StatusUnauthorized, "unsigned request")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		fresh, err := store.claim(ctx, sig, window)
		if err != nil {
			logger.Error("signature replay lookup failed", slog.Any("error", err))
			return fiber.NewError(http.StatusServiceUnavailable, "signature store unavailable")
		}
		if !fresh {
			return fiber.NewError(http.StatusUnauthorized, "signature already used")
		}
		return c.Next()
	}
}
