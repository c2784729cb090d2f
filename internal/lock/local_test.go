package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/lock"
)

func TestLocalLockerSerializesOneShow(t *testing.T) {
	l := lock.NewLocalLocker(time.Second)
	ctx := context.Background()

	var inSection, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.AcquireShow(ctx, 1)
			require.NoError(t, err)
			defer release()
			mu.Lock()
			inSection++
			if inSection > max {
				max = inSection
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inSection--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "more than one holder inside the critical section")
}

func TestLocalLockerShowsAreIndependent(t *testing.T) {
	l := lock.NewLocalLocker(50 * time.Millisecond)
	ctx := context.Background()

	release1, err := l.AcquireShow(ctx, 1)
	require.NoError(t, err)
	defer release1()

	// A different show must not be blocked by show 1's holder.
	release2, err := l.AcquireShow(ctx, 2)
	require.NoError(t, err)
	release2()
}

func TestLocalLockerBoundedWait(t *testing.T) {
	l := lock.NewLocalLocker(30 * time.Millisecond)
	ctx := context.Background()

	release, err := l.AcquireShow(ctx, 1)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = l.AcquireShow(ctx, 1)
	assert.ErrorIs(t, err, engine.ErrContention)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLocalLockerContextCancellation(t *testing.T) {
	l := lock.NewLocalLocker(time.Minute)

	release, err := l.AcquireShow(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.AcquireShow(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLockerReleaseIsIdempotent(t *testing.T) {
	l := lock.NewLocalLocker(time.Second)
	ctx := context.Background()

	release, err := l.AcquireShow(ctx, 1)
	require.NoError(t, err)
	release()
	release() // second call must not unlock someone else's acquisition

	release2, err := l.AcquireShow(ctx, 1)
	require.NoError(t, err)
	defer release2()

	_, err = l.AcquireShow(ctx, 1)
	assert.ErrorIs(t, err, engine.ErrContention)
}
