// Package cache holds the Redis-backed availability cache for the
// read-only seat availability projection.  The cache is advisory:
// every write decision in the engine re-reads the stores under the
// per-show lock, so a stale cache can never cause a double-booking —
// mutating operations just delete the show's key afterwards.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rsahakyan/seatledger/internal/model"
)

// ErrMiss is returned when a show's availability is not cached.
var ErrMiss = errors.New("availability cache miss")

// Availability caches the unheld seat units of a show as JSON under
// avail:show:<id>.  A nil client disables the cache: Get always
// misses, Set and Invalidate are no-ops.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAvailability constructs the cache.  ttl bounds staleness of the
// read projection between invalidations.
func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Availability{rdb: rdb, ttl: ttl}
}

func availKey(showID uint64) string {
	return fmt.Sprintf("avail:show:%d", showID)
}

// Get returns the cached availability or ErrMiss.
func (a *Availability) Get(ctx context.Context, showID uint64) ([]model.SeatUnit, error) {
	if a.rdb == nil {
		return nil, ErrMiss
	}
	raw, err := a.rdb.Get(ctx, availKey(showID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	var units []model.SeatUnit
	if err := json.Unmarshal(raw, &units); err != nil {
		// Treat a corrupt entry as a miss; it is rewritten on the next Set.
		return nil, ErrMiss
	}
	return units, nil
}

// Set stores the availability snapshot for the show.
func (a *Availability) Set(ctx context.Context, showID uint64, units []model.SeatUnit) error {
	if a.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(units)
	if err != nil {
		return err
	}
	return a.rdb.Set(ctx, availKey(showID), raw, a.ttl).Err()
}

// Invalidate drops the show's cached availability.  Called after every
// mutating engine operation on the show.
func (a *Availability) Invalidate(ctx context.Context, showID uint64) error {
	if a.rdb == nil {
		return nil
	}
	return a.rdb.Del(ctx, availKey(showID)).Err()
}
