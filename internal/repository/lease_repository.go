package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
)

// LeaseRepository implements an exclusive lease keyed by scope and week
// so two generation runs cannot double-book the same scheduling period.
// Backed by Redis SET NX when a client is available, otherwise by an
// in-process table (sufficient for a single instance).
type LeaseRepository struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]time.Time
}

// NewLeaseRepository constructs a lease repository.
func NewLeaseRepository(client *redis.Client, ttl time.Duration) *LeaseRepository {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &LeaseRepository{
		client: client,
		ttl:    ttl,
		local:  make(map[string]time.Time),
	}
}

// Acquire takes the lease for the given key, returning ErrLeaseHeld when
// another run already holds it.
func (r *LeaseRepository) Acquire(ctx context.Context, key string) error {
	if r.client != nil {
		ok, err := r.client.SetNX(ctx, r.redisKey(key), "held", r.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrLeaseHeld, fmt.Sprintf("generation already running for %s", key))
		}
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if expiry, held := r.local[key]; held && time.Now().Before(expiry) {
		return appErrors.Clone(appErrors.ErrLeaseHeld, fmt.Sprintf("generation already running for %s", key))
	}
	r.local[key] = time.Now().Add(r.ttl)
	return nil
}

// Release frees the lease. Safe to call even if the lease expired.
func (r *LeaseRepository) Release(ctx context.Context, key string) error {
	if r.client != nil {
		if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", key, err)
		}
		return nil
	}

	r.mu.Lock()
	delete(r.local, key)
	r.mu.Unlock()
	return nil
}

func (r *LeaseRepository) redisKey(key string) string {
	return "timetable:generate:" + key
}
