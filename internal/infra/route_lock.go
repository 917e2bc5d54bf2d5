package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrRouteLockTimeout is returned when a route stays locked longer than the
// caller is willing to wait.
var ErrRouteLockTimeout = errors.New("la salida está siendo modificada por otra operación")

const routeLockPoll = 25 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisRouteLocker serializes mutations of one route across every API
// instance sharing the Redis server.
type RedisRouteLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisRouteLocker(client *redis.Client, ttl time.Duration) *RedisRouteLocker {
	return &RedisRouteLocker{client: client, keyPrefix: "lock:salida:", ttl: ttl}
}

// Lock blocks until the route is ours or the wait budget (one TTL, or the
// context deadline if sooner) runs out. The returned func releases the lock.
func (l *RedisRouteLocker) Lock(ctx context.Context, salidaID uuid.UUID) (func(), error) {
	key := l.keyPrefix + salidaID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire route lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrRouteLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(routeLockPoll):
		}
	}

	return func() {
		// Release must run even if the request context was cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			log.Error().Err(err).Str("salida_id", salidaID.String()).Msg("failed to release route lock")
		}
	}, nil
}

// LocalRouteLocker is the single-process fallback used when Redis is not
// configured: one mutex per route id, dropped when no caller holds it.
type LocalRouteLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*localLock
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalRouteLocker() *LocalRouteLocker {
	return &LocalRouteLocker{locks: make(map[uuid.UUID]*localLock)}
}

func (l *LocalRouteLocker) Lock(ctx context.Context, salidaID uuid.UUID) (func(), error) {
	l.mu.Lock()
	ll, ok := l.locks[salidaID]
	if !ok {
		ll = &localLock{}
		l.locks[salidaID] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.mu.Lock()
	return func() {
		ll.mu.Unlock()
		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, salidaID)
		}
		l.mu.Unlock()
	}, nil
}
