// Package engine implements the reservation core: allocating seat
// units to bookings, swapping bookings onto cheaper inventory, and
// releasing inventory on cancellation.  All mutating operations are
// serialized per show occurrence through a ShowLocker, so operations
// on disjoint shows proceed fully in parallel.
package engine

import "errors"

// Sentinel errors returned by engine operations.  Higher layers
// distinguish failure classes with errors.Is; the classifier helpers
// below group them the way callers typically branch.
var (
	// ErrInsufficientInventory means fewer unheld seat units exist than
	// the operation requires.  Recoverable: the caller may retry with a
	// smaller count or after inventory frees up.
	ErrInsufficientInventory = errors.New("insufficient seat inventory")

	// ErrBookingNotFound means no booking with the given id exists.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrShowNotFound means the show occurrence does not exist in the
	// catalog.
	ErrShowNotFound = errors.New("show not found")

	// ErrInvalidSeatCount means a non-positive seat count was requested.
	ErrInvalidSeatCount = errors.New("seat count must be positive")

	// ErrInvalidSwapCount means the swap count is non-positive or
	// exceeds the booking's current holdings.
	ErrInvalidSwapCount = errors.New("swap count out of range")

	// ErrContention means the per-show critical section could not be
	// acquired within the configured bound.  The whole operation may be
	// retried.
	ErrContention = errors.New("show inventory is contended, retry")

	// ErrInconsistency flags a cancelled booking that still holds seat
	// units.  The sweeper surfaces it instead of auto-repairing, since
	// releasing on the sweeper's behalf could mask a bug elsewhere.
	ErrInconsistency = errors.New("cancelled booking still holds seats")
)

// IsRetryable reports whether the caller may retry the same operation
// unchanged and reasonably expect it to succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}

// IsInvalidInput reports whether the failure was caused by the caller's
// arguments rather than system state; such requests should not be
// retried as-is.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidSeatCount) || errors.Is(err, ErrInvalidSwapCount)
}

// IsNotFound reports whether the failure names a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrShowNotFound)
}
