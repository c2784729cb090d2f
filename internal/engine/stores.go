package engine

import (
	"context"

	"github.com/rsahakyan/seatledger/internal/model"
)

// SeatStore is the inventory store: the durable record of seat units
// and their holders.  Every method is atomic on its own; the engine
// composes them under the per-show critical section.
type SeatStore interface {
	// AvailableByShow returns every unheld seat unit for the show in
	// ascending id order.
	AvailableByShow(ctx context.Context, showID uint64) ([]model.SeatUnit, error)

	// HeldByBooking returns every seat unit whose holder is the given
	// booking, in ascending id order.
	HeldByBooking(ctx context.Context, bookingID uint64) ([]model.SeatUnit, error)

	// Claim sets the holder of the given seat units to bookingID.  The
	// assignment is compare-and-set on the holder being empty: when any
	// of the units is already held the whole claim fails with
	// ErrInsufficientInventory and no unit is modified.
	Claim(ctx context.Context, showID uint64, seatIDs []uint64, bookingID uint64) error

	// ReleaseUnits clears the holder on the given seat units, but only
	// where the holder is bookingID.  Units held by other bookings are
	// left untouched.
	ReleaseUnits(ctx context.Context, bookingID uint64, seatIDs []uint64) error

	// ReleaseByBooking clears the holder on every seat unit referencing
	// the booking and returns the ids of the released units.
	ReleaseByBooking(ctx context.Context, bookingID uint64) ([]uint64, error)
}

// BookingStore is the booking ledger.  Booking ids come from the
// store's own monotonic source; callers never compute them.
type BookingStore interface {
	// Create inserts a new booking and populates its ID and CreatedAt.
	Create(ctx context.Context, b *model.Booking) error

	// GetByID returns the booking or ErrBookingNotFound.
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)

	// MarkCancelled transitions the booking to CANCELLED and zeroes its
	// recorded seat count.
	MarkCancelled(ctx context.Context, id uint64) error

	// ListByStatus returns all bookings with the given status in
	// ascending id order.
	ListByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)

	// Delete removes the booking row.  Used when rolling back a failed
	// allocation and when purging cancelled bookings.
	Delete(ctx context.Context, id uint64) error
}

// ShowCatalog answers existence checks against the external show
// catalog.  The catalog itself (movies, theaters, schedules) is not
// managed here.
type ShowCatalog interface {
	ShowExists(ctx context.Context, showID uint64) (bool, error)
}

// ShowLocker provides the per-show critical section.  Acquire blocks
// for at most the locker's configured bound and returns ErrContention
// when the section stays unavailable, so callers never deadlock.  The
// returned release function must be called exactly once.
type ShowLocker interface {
	AcquireShow(ctx context.Context, showID uint64) (release func(), err error)
}
