package sweeper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/lock"
	"github.com/rsahakyan/seatledger/internal/model"
	"github.com/rsahakyan/seatledger/internal/repository"
	"github.com/rsahakyan/seatledger/internal/sweeper"
)

const testShow = uint64(3)

func newSweeper(t *testing.T, prices []uint32) (*sweeper.Sweeper, *engine.Engine, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddShow(testShow)
	if len(prices) > 0 {
		_, err := store.CreateUnits(context.Background(), testShow, prices)
		require.NoError(t, err)
	}
	eng := engine.New(store, store, store, lock.NewLocalLocker(time.Second), zap.NewNop())
	return sweeper.New(eng, store, store, zap.NewNop()), eng, store
}

func TestCancelAllPendingThenPurgeDrainsLedger(t *testing.T) {
	sw, eng, store := newSweeper(t, []uint32{1000, 1000, 1000, 1000})
	ctx := context.Background()

	a1, err := eng.AllocateSeats(ctx, 1, testShow, 2)
	require.NoError(t, err)
	a2, err := eng.AllocateSeats(ctx, 2, testShow, 1)
	require.NoError(t, err)

	rep, err := sw.CancelAllPending(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{a1.BookingID, a2.BookingID}, rep.Cancelled)
	assert.Empty(t, rep.Failed)

	// All seats are back in inventory before the purge runs.
	avail, err := store.AvailableByShow(ctx, testShow)
	require.NoError(t, err)
	assert.Len(t, avail, 4)

	prep, err := sw.PurgeCancelled(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{a1.BookingID, a2.BookingID}, prep.Purged)
	assert.Empty(t, prep.Inconsistent)

	cancelled, err := store.ListByStatus(ctx, model.BookingCancelled)
	require.NoError(t, err)
	assert.Empty(t, cancelled)
}

func TestCancelAllPendingEmptyLedger(t *testing.T) {
	sw, _, _ := newSweeper(t, nil)

	rep, err := sw.CancelAllPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Cancelled)
	assert.Empty(t, rep.Failed)
}

func TestPurgeSkipsBookingStillHoldingSeats(t *testing.T) {
	sw, eng, store := newSweeper(t, []uint32{1000, 1000})
	ctx := context.Background()

	healthy, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)
	_, err = eng.CancelBooking(ctx, healthy.BookingID)
	require.NoError(t, err)

	// Simulate a cancellation interrupted between the status flip and
	// the seat release: the booking reads CANCELLED but still holds a
	// unit.
	broken, err := eng.AllocateSeats(ctx, 2, testShow, 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkCancelled(ctx, broken.BookingID))

	rep, err := sw.PurgeCancelled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{healthy.BookingID}, rep.Purged)
	assert.Equal(t, []uint64{broken.BookingID}, rep.Inconsistent)

	// The inconsistent booking survives the purge untouched, seats
	// included.
	held, err := store.HeldByBooking(ctx, broken.BookingID)
	require.NoError(t, err)
	assert.Len(t, held, 1)
	_, err = store.GetByID(ctx, broken.BookingID)
	assert.NoError(t, err)
}

func TestPurgeIgnoresPendingBookings(t *testing.T) {
	sw, eng, store := newSweeper(t, []uint32{1000})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)

	rep, err := sw.PurgeCancelled(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Purged)

	b, err := store.GetByID(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
}

func TestRunPeriodicPurgeStopsOnContextCancel(t *testing.T) {
	sw, eng, _ := newSweeper(t, []uint32{1000})
	ctx, cancel := context.WithCancel(context.Background())

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)
	_, err = eng.CancelBooking(ctx, alloc.BookingID)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sw.RunPeriodicPurge(ctx, 10*time.Millisecond)
		close(done)
	}()

	// Give the ticker a couple of intervals to fire, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic purge did not stop after context cancellation")
	}

	rep, err := sw.PurgeCancelled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Purged, "periodic runs should already have purged the booking")
}
