package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rsahakyan/seatledger/internal/engine"
)

// unlockScript deletes the lock key only when it still carries the
// caller's token, so an instance that held the lock past its TTL can
// never release a lock reacquired by someone else.
var unlockScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker implements the per-show critical section across
// processes with a SET NX PX lock.  Acquisition polls until the
// configured wait bound elapses; the lock key carries a random token
// checked on release.
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewRedisLocker builds a RedisLocker.  ttl is how long a crashed
// holder can block a show before the lock self-expires; wait bounds
// acquisition; retry is the polling interval between attempts.
func NewRedisLocker(rdb *redis.Client, ttl, wait, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, retry: retry}
}

func lockKey(showID uint64) string {
	return fmt.Sprintf("showlock:%d", showID)
}

// AcquireShow takes the distributed lock for the show, retrying until
// the wait bound elapses.  On success the returned release function
// deletes the lock if and only if this caller still owns it.
func (l *RedisLocker) AcquireShow(ctx context.Context, showID uint64) (func(), error) {
	key := lockKey(showID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire show lock: %w", err)
		}
		if ok {
			return func() {
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = unlockScript.Run(relCtx, l.rdb, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, engine.ErrContention
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
