package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/model"
)

// Engine coordinates the two stores behind the per-show critical
// section.  It is safe for concurrent use; serialization happens at
// the granularity of one show's inventory, so callers touching
// different shows never block each other.
type Engine struct {
	seats    SeatStore
	bookings BookingStore
	catalog  ShowCatalog
	locks    ShowLocker
	log      *zap.Logger
}

// New constructs an Engine.  All dependencies must be non-nil; a nop
// logger is substituted when log is nil.
func New(seats SeatStore, bookings BookingStore, catalog ShowCatalog, locks ShowLocker, log *zap.Logger) *Engine {
	if seats == nil || bookings == nil || catalog == nil || locks == nil {
		panic("nil dependency passed to engine.New")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{seats: seats, bookings: bookings, catalog: catalog, locks: locks, log: log}
}

// AllocationResult describes a successful allocation.
type AllocationResult struct {
	BookingID  uint64
	ShowID     uint64
	CustomerID uint64
	SeatIDs    []uint64
	TotalCents uint32
	CreatedAt  time.Time
}

// SwapResult describes the outcome of SwapToCheaperSeats.  When
// Swapped is false the booking's seat set was already the cheapest
// possible for the requested size and nothing changed.
type SwapResult struct {
	BookingID     uint64
	ShowID        uint64
	Swapped       bool
	ReleasedSeats []uint64
	ClaimedSeats  []uint64
	OldTotalCents uint32
	NewTotalCents uint32
}

// CancelResult describes the outcome of CancelBooking.
type CancelResult struct {
	BookingID        uint64
	ShowID           uint64
	ReleasedSeats    []uint64
	AlreadyCancelled bool
}

// AllocateSeats reserves seatCount unheld seat units of the show for
// the customer and records a new PENDING booking holding them.  Units
// are chosen in ascending id order, so repeated runs over the same
// state pick the same seats.  The operation is all-or-nothing: when
// the claim cannot complete, the booking row is removed and no seat
// keeps a partial assignment.
func (e *Engine) AllocateSeats(ctx context.Context, customerID, showID uint64, seatCount int) (*AllocationResult, error) {
	if seatCount <= 0 {
		return nil, ErrInvalidSeatCount
	}
	ok, err := e.catalog.ShowExists(ctx, showID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrShowNotFound
	}

	release, err := e.locks.AcquireShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	defer release()

	avail, err := e.seats.AvailableByShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if len(avail) < seatCount {
		return nil, ErrInsufficientInventory
	}
	sort.Slice(avail, func(i, j int) bool { return avail[i].ID < avail[j].ID })
	chosen := avail[:seatCount]

	booking := &model.Booking{
		CustomerID: customerID,
		ShowID:     showID,
		Status:     model.BookingPending,
		SeatCount:  uint32(seatCount),
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	seatIDs := make([]uint64, 0, seatCount)
	var total uint32
	for _, s := range chosen {
		seatIDs = append(seatIDs, s.ID)
		total += s.PriceCents
	}
	if err := e.seats.Claim(ctx, showID, seatIDs, booking.ID); err != nil {
		// The claim mutates nothing on failure; only the ledger row
		// needs to be rolled back.
		if delErr := e.bookings.Delete(ctx, booking.ID); delErr != nil {
			e.log.Error("rollback of unclaimed booking failed",
				zap.Uint64("booking_id", booking.ID), zap.Error(delErr))
		}
		return nil, err
	}

	e.log.Info("seats allocated",
		zap.Uint64("booking_id", booking.ID),
		zap.Uint64("show_id", showID),
		zap.Uint64("customer_id", customerID),
		zap.Int("seat_count", seatCount),
		zap.Uint32("total_cents", total))
	return &AllocationResult{
		BookingID:  booking.ID,
		ShowID:     showID,
		CustomerID: customerID,
		SeatIDs:    seatIDs,
		TotalCents: total,
		CreatedAt:  booking.CreatedAt,
	}, nil
}

// SwapToCheaperSeats moves swapCount of the booking's seats onto the
// cheapest available inventory of the same show, but only when that is
// strictly cheaper than the seats being given up.  Candidates are the
// swapCount cheapest unheld units (price, then id); the seats given up
// are the booking's swapCount priciest holdings.  The booking's seat
// count is unchanged by a swap.
func (e *Engine) SwapToCheaperSeats(ctx context.Context, bookingID uint64, swapCount int) (*SwapResult, error) {
	if swapCount < 1 {
		return nil, ErrInvalidSwapCount
	}
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	// Only a pending booking can be reshaped; cancelled and fulfilled
	// bookings are out of reach of this subsystem.
	if booking.Status != model.BookingPending {
		return nil, ErrBookingNotFound
	}
	if swapCount > int(booking.SeatCount) {
		return nil, ErrInvalidSwapCount
	}

	release, err := e.locks.AcquireShow(ctx, booking.ShowID)
	if err != nil {
		return nil, err
	}
	defer release()

	held, err := e.seats.HeldByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if swapCount > len(held) {
		return nil, ErrInvalidSwapCount
	}
	avail, err := e.seats.AvailableByShow(ctx, booking.ShowID)
	if err != nil {
		return nil, err
	}
	if len(avail) < swapCount {
		return nil, ErrInsufficientInventory
	}

	// Cheapest candidates first, priciest victims first.  Ids break
	// price ties so the selection is reproducible.
	sort.Slice(avail, func(i, j int) bool {
		if avail[i].PriceCents != avail[j].PriceCents {
			return avail[i].PriceCents < avail[j].PriceCents
		}
		return avail[i].ID < avail[j].ID
	})
	sort.Slice(held, func(i, j int) bool {
		if held[i].PriceCents != held[j].PriceCents {
			return held[i].PriceCents > held[j].PriceCents
		}
		return held[i].ID > held[j].ID
	})
	candidates := avail[:swapCount]
	victims := held[:swapCount]

	var oldTotal uint32
	for _, s := range held {
		oldTotal += s.PriceCents
	}
	var candTotal, victimTotal uint32
	candidateIDs := make([]uint64, 0, swapCount)
	victimIDs := make([]uint64, 0, swapCount)
	for _, s := range candidates {
		candTotal += s.PriceCents
		candidateIDs = append(candidateIDs, s.ID)
	}
	for _, s := range victims {
		victimTotal += s.PriceCents
		victimIDs = append(victimIDs, s.ID)
	}

	// Swapping proceeds only when strictly cheaper; an equal-price swap
	// is pointless churn.
	if candTotal >= victimTotal {
		return &SwapResult{
			BookingID:     bookingID,
			ShowID:        booking.ShowID,
			Swapped:       false,
			OldTotalCents: oldTotal,
			NewTotalCents: oldTotal,
		}, nil
	}

	// Claim before releasing: the booking transiently holds both sets,
	// which keeps the seats out of reach of concurrent allocations.
	if err := e.seats.Claim(ctx, booking.ShowID, candidateIDs, bookingID); err != nil {
		return nil, err
	}
	if err := e.seats.ReleaseUnits(ctx, bookingID, victimIDs); err != nil {
		if rbErr := e.seats.ReleaseUnits(ctx, bookingID, candidateIDs); rbErr != nil {
			e.log.Error("rollback of swap claim failed",
				zap.Uint64("booking_id", bookingID), zap.Error(rbErr))
		}
		return nil, err
	}

	newTotal := oldTotal - victimTotal + candTotal
	e.log.Info("booking swapped to cheaper seats",
		zap.Uint64("booking_id", bookingID),
		zap.Uint64("show_id", booking.ShowID),
		zap.Int("swap_count", swapCount),
		zap.Uint32("old_total_cents", oldTotal),
		zap.Uint32("new_total_cents", newTotal))
	return &SwapResult{
		BookingID:     bookingID,
		ShowID:        booking.ShowID,
		Swapped:       true,
		ReleasedSeats: victimIDs,
		ClaimedSeats:  candidateIDs,
		OldTotalCents: oldTotal,
		NewTotalCents: newTotal,
	}, nil
}

// CancelBooking transitions the booking to CANCELLED and releases
// every seat unit it holds.  Cancelling an already-cancelled booking
// is a no-op.  The status flips before the seats are released: if the
// process dies in between, the leftover holdings are exactly what
// PurgeCancelled reports as an inconsistency, so the state is always
// recoverable.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint64) (*CancelResult, error) {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingCancelled {
		return &CancelResult{BookingID: bookingID, ShowID: booking.ShowID, AlreadyCancelled: true}, nil
	}
	// PENDING is the only state cancellation may start from; a
	// fulfilled booking is released through the payment flow, not here.
	if booking.Status != model.BookingPending {
		return nil, ErrBookingNotFound
	}

	release, err := e.locks.AcquireShow(ctx, booking.ShowID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.bookings.MarkCancelled(ctx, bookingID); err != nil {
		return nil, err
	}
	released, err := e.seats.ReleaseByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	e.log.Info("booking cancelled",
		zap.Uint64("booking_id", bookingID),
		zap.Uint64("show_id", booking.ShowID),
		zap.Int("released_seats", len(released)))
	return &CancelResult{
		BookingID:     bookingID,
		ShowID:        booking.ShowID,
		ReleasedSeats: released,
	}, nil
}

// ReleaseBookingSeats clears the holder reference on every seat unit
// referencing the booking.  It is the primitive behind cancellation;
// it does not touch the booking row itself, so a caller using it on a
// pending booking owns bringing the recorded seat count back in line
// with the (now empty) holdings.
func (e *Engine) ReleaseBookingSeats(ctx context.Context, bookingID uint64) ([]uint64, error) {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	release, err := e.locks.AcquireShow(ctx, booking.ShowID)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.seats.ReleaseByBooking(ctx, bookingID)
}

// GetBooking returns the booking together with its current holdings.
// Reads do not take the show lock; they are projections and must not
// be used as the basis for a write decision.
func (e *Engine) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, []model.SeatUnit, error) {
	booking, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	held, err := e.seats.HeldByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return booking, held, nil
}

// Availability returns the unheld seat units of a show in ascending id
// order.
func (e *Engine) Availability(ctx context.Context, showID uint64) ([]model.SeatUnit, error) {
	ok, err := e.catalog.ShowExists(ctx, showID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrShowNotFound
	}
	return e.seats.AvailableByShow(ctx, showID)
}
