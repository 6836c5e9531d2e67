/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	lockKeyPrefix     = "fixdesk:booking-lock:"
	lockRetryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lease only if this instance still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockConfig configures the distributed lease.
type RedisLockConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// BookingLocks serializes the conflict check and the job write per
// (account, technician). In-process callers share a mutex registry;
// when a Redis client is configured, a SET-NX lease additionally
// serializes instances that share a store. Redis being down degrades to
// the local registry rather than failing bookings.
type BookingLocks struct {
	mu    sync.Mutex
	local map[string]*sync.Mutex

	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewBookingLocks creates a process-local lock registry.
func NewBookingLocks(logger zerolog.Logger) *BookingLocks {
	return &BookingLocks{
		local:  make(map[string]*sync.Mutex),
		ttl:    15 * time.Second,
		logger: logger.With().Str("component", "booking_locks").Logger(),
	}
}

// NewBookingLocksWithRedis creates a lock registry backed by a Redis
// lease for multi-instance deployments.
func NewBookingLocksWithRedis(cfg RedisLockConfig, logger zerolog.Logger) (*BookingLocks, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis for booking locks: %w", err)
	}

	locks := NewBookingLocks(logger)
	locks.client = client
	if cfg.TTL > 0 {
		locks.ttl = cfg.TTL
	}

	logger.Info().Str("redis_addr", cfg.Addr).Msg("distributed booking locks enabled")
	return locks, nil
}

// Acquire takes the technician's advisory lock, blocking until it is
// held or the context is cancelled. The returned release function must
// be called exactly once.
func (l *BookingLocks) Acquire(ctx context.Context, accountID, technicianID string) (func(), error) {
	key := accountID + "/" + technicianID

	mu := l.localMutex(key)
	mu.Lock()

	if l.client == nil {
		return mu.Unlock, nil
	}

	token, err := l.acquireLease(ctx, key)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	return func() {
		l.releaseLease(key, token)
		mu.Unlock()
	}, nil
}

func (l *BookingLocks) localMutex(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.local[key]
	if !ok {
		mu = &sync.Mutex{}
		l.local[key] = mu
	}
	return mu
}

func (l *BookingLocks) acquireLease(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	redisKey := lockKeyPrefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			// Degrade to the local registry; the store-level overlap
			// guard remains the backstop.
			l.logger.Warn().Err(err).Str("key", key).Msg("redis lease unavailable, using local lock only")
			return "", nil
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *BookingLocks) releaseLease(key, token string) {
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("failed to release booking lease")
	}
}

// Close releases the Redis client if one is configured.
func (l *BookingLocks) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
