package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/lock"
	"github.com/rsahakyan/seatledger/internal/model"
	"github.com/rsahakyan/seatledger/internal/repository"
)

const testShow = uint64(7)

// newEngine builds an engine over the in-memory store with a show
// provisioned at the given prices.  Seat ids are assigned in the order
// of the prices slice, starting at 1.
func newEngine(t *testing.T, prices []uint32) (*engine.Engine, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddShow(testShow)
	if len(prices) > 0 {
		_, err := store.CreateUnits(context.Background(), testShow, prices)
		require.NoError(t, err)
	}
	eng := engine.New(store, store, store, lock.NewLocalLocker(time.Second), zap.NewNop())
	return eng, store
}

func TestAllocateSeatsPicksLowestIDs(t *testing.T) {
	eng, store := newEngine(t, []uint32{1000, 1500, 800, 1200})
	ctx := context.Background()

	res, err := eng.AllocateSeats(ctx, 42, testShow, 2)
	require.NoError(t, err)
	// Selection is by ascending id, not by price.
	assert.Equal(t, []uint64{1, 2}, res.SeatIDs)
	assert.Equal(t, uint32(2500), res.TotalCents)
	assert.Equal(t, uint64(42), res.CustomerID)

	b, err := store.GetByID(ctx, res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, uint32(2), b.SeatCount)

	avail, err := store.AvailableByShow(ctx, testShow)
	require.NoError(t, err)
	assert.Len(t, avail, 2)
}

func TestAllocateSeatsInsufficientInventory(t *testing.T) {
	eng, store := newEngine(t, []uint32{1000, 1000})
	ctx := context.Background()

	_, err := eng.AllocateSeats(ctx, 1, testShow, 3)
	assert.ErrorIs(t, err, engine.ErrInsufficientInventory)

	// A failed allocation must leave no trace: no held seats and no
	// booking row.
	avail, err := store.AvailableByShow(ctx, testShow)
	require.NoError(t, err)
	assert.Len(t, avail, 2)
	pending, err := store.ListByStatus(ctx, model.BookingPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAllocateSeatsInvalidCount(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})
	ctx := context.Background()

	_, err := eng.AllocateSeats(ctx, 1, testShow, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidSeatCount)
	_, err = eng.AllocateSeats(ctx, 1, testShow, -5)
	assert.ErrorIs(t, err, engine.ErrInvalidSeatCount)
}

func TestAllocateSeatsUnknownShow(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})

	_, err := eng.AllocateSeats(context.Background(), 1, 999, 1)
	assert.ErrorIs(t, err, engine.ErrShowNotFound)
}

func TestAllocateSeatsConcurrentDisjoint(t *testing.T) {
	prices := make([]uint32, 20)
	for i := range prices {
		prices[i] = 1000
	}
	eng, _ := newEngine(t, prices)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*engine.AllocationResult, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.AllocateSeats(ctx, uint64(i+1), testShow, 2)
		}(i)
	}
	wg.Wait()

	// Every seat must end up in exactly one booking.
	seen := make(map[uint64]bool)
	for i, res := range results {
		require.NoError(t, errs[i])
		for _, id := range res.SeatIDs {
			assert.False(t, seen[id], "seat %d allocated twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 20)
}

func TestSwapToCheaperSeats(t *testing.T) {
	// Seat 1 $10, seat 2 $12, seat 3 $8.  Allocating two seats takes
	// 1 and 2; swapping one trades the $12 seat for the $8 one.
	eng, store := newEngine(t, []uint32{1000, 1200, 800})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, alloc.SeatIDs)

	res, err := eng.SwapToCheaperSeats(ctx, alloc.BookingID, 1)
	require.NoError(t, err)
	assert.True(t, res.Swapped)
	assert.Equal(t, []uint64{2}, res.ReleasedSeats)
	assert.Equal(t, []uint64{3}, res.ClaimedSeats)
	assert.Equal(t, uint32(2200), res.OldTotalCents)
	assert.Equal(t, uint32(1800), res.NewTotalCents)

	held, err := store.HeldByBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	heldIDs := make([]uint64, 0, len(held))
	for _, s := range held {
		heldIDs = append(heldIDs, s.ID)
	}
	assert.Equal(t, []uint64{1, 3}, heldIDs)

	// Seat count is invariant under swaps.
	b, err := store.GetByID(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), b.SeatCount)
}

func TestSwapNotCheaperIsNoOp(t *testing.T) {
	// The only free seat costs the same as the cheapest held one, so an
	// equal-price swap must be refused.
	eng, store := newEngine(t, []uint32{1000, 1000})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)

	res, err := eng.SwapToCheaperSeats(ctx, alloc.BookingID, 1)
	require.NoError(t, err)
	assert.False(t, res.Swapped)
	assert.Empty(t, res.ReleasedSeats)
	assert.Empty(t, res.ClaimedSeats)
	assert.Equal(t, res.OldTotalCents, res.NewTotalCents)

	held, err := store.HeldByBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, uint64(1), held[0].ID)
}

func TestSwapMultipleSeats(t *testing.T) {
	// Hold $20+$18, with $5 and $6 free: swapping both saves $27.
	eng, _ := newEngine(t, []uint32{2000, 1800, 500, 600})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 2)
	require.NoError(t, err)

	res, err := eng.SwapToCheaperSeats(ctx, alloc.BookingID, 2)
	require.NoError(t, err)
	assert.True(t, res.Swapped)
	assert.Equal(t, uint32(3800), res.OldTotalCents)
	assert.Equal(t, uint32(1100), res.NewTotalCents)
	assert.ElementsMatch(t, []uint64{1, 2}, res.ReleasedSeats)
	assert.ElementsMatch(t, []uint64{3, 4}, res.ClaimedSeats)
}

func TestSwapInvalidCount(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000, 800})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)

	_, err = eng.SwapToCheaperSeats(ctx, alloc.BookingID, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidSwapCount)
	_, err = eng.SwapToCheaperSeats(ctx, alloc.BookingID, 2)
	assert.ErrorIs(t, err, engine.ErrInvalidSwapCount)
}

func TestSwapOnCancelledBooking(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000, 800})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)
	_, err = eng.CancelBooking(ctx, alloc.BookingID)
	require.NoError(t, err)

	// Terminal bookings are out of reach for swaps.
	_, err = eng.SwapToCheaperSeats(ctx, alloc.BookingID, 1)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)
}

// confirmBooking writes a CONFIRMED booking holding the given seat
// directly to the store, the way the external payment flow would leave
// it.
func confirmBooking(t *testing.T, store *repository.MemoryStore, seatID uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	b := &model.Booking{
		CustomerID: 1,
		ShowID:     testShow,
		Status:     model.BookingConfirmed,
		SeatCount:  1,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, b))
	require.NoError(t, store.Claim(ctx, testShow, []uint64{seatID}, b.ID))
	return b.ID
}

func TestSwapOnConfirmedBooking(t *testing.T) {
	// Seat 1 $20 held by a fulfilled booking, seat 2 $8 free: the swap
	// would profit, but a paid booking's seats must never be reshuffled.
	eng, store := newEngine(t, []uint32{2000, 800})
	ctx := context.Background()

	id := confirmBooking(t, store, 1)

	_, err := eng.SwapToCheaperSeats(ctx, id, 1)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)

	held, err := store.HeldByBooking(ctx, id)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, uint64(1), held[0].ID)
}

func TestCancelConfirmedBooking(t *testing.T) {
	eng, store := newEngine(t, []uint32{2000})
	ctx := context.Background()

	id := confirmBooking(t, store, 1)

	_, err := eng.CancelBooking(ctx, id)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)

	// The booking and its holdings are untouched.
	b, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	held, err := store.HeldByBooking(ctx, id)
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestSwapUnknownBooking(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})

	_, err := eng.SwapToCheaperSeats(context.Background(), 404, 1)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)
}

func TestSwapWithoutAvailableSeats(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)

	_, err = eng.SwapToCheaperSeats(ctx, alloc.BookingID, 1)
	assert.ErrorIs(t, err, engine.ErrInsufficientInventory)
}

func TestCancelReleasesSeats(t *testing.T) {
	eng, store := newEngine(t, []uint32{1000, 1200, 800})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 2)
	require.NoError(t, err)

	res, err := eng.CancelBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCancelled)
	assert.Equal(t, []uint64{1, 2}, res.ReleasedSeats)

	b, err := store.GetByID(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Zero(t, b.SeatCount)

	// Released seats are immediately allocatable again.
	avail, err := store.AvailableByShow(ctx, testShow)
	require.NoError(t, err)
	assert.Len(t, avail, 3)
}

func TestCancelTwice(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 1)
	require.NoError(t, err)

	_, err = eng.CancelBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	res, err := eng.CancelBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCancelled)
	assert.Empty(t, res.ReleasedSeats)
}

func TestCancelUnknownBooking(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000})

	_, err := eng.CancelBooking(context.Background(), 404)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)
}

func TestReleaseBookingSeats(t *testing.T) {
	eng, store := newEngine(t, []uint32{1000, 1200})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 1, testShow, 2)
	require.NoError(t, err)

	released, err := eng.ReleaseBookingSeats(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, released)

	// The primitive releases seats without touching the ledger row.
	b, err := store.GetByID(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)

	// Releasing again finds nothing.
	released, err = eng.ReleaseBookingSeats(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestGetBooking(t *testing.T) {
	eng, _ := newEngine(t, []uint32{1000, 1200})
	ctx := context.Background()

	alloc, err := eng.AllocateSeats(ctx, 9, testShow, 2)
	require.NoError(t, err)

	b, held, err := eng.GetBooking(ctx, alloc.BookingID)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.CustomerID)
	assert.Len(t, held, 2)

	_, _, err = eng.GetBooking(ctx, 404)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)
}

func TestAvailabilityUnknownShow(t *testing.T) {
	eng, _ := newEngine(t, nil)

	_, err := eng.Availability(context.Background(), 999)
	assert.ErrorIs(t, err, engine.ErrShowNotFound)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, engine.IsRetryable(engine.ErrContention))
	assert.False(t, engine.IsRetryable(engine.ErrBookingNotFound))
	assert.True(t, engine.IsInvalidInput(engine.ErrInvalidSeatCount))
	assert.True(t, engine.IsInvalidInput(engine.ErrInvalidSwapCount))
	assert.True(t, engine.IsNotFound(engine.ErrBookingNotFound))
	assert.True(t, engine.IsNotFound(engine.ErrShowNotFound))
	assert.False(t, engine.IsNotFound(engine.ErrInsufficientInventory))
}
