package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.  The
// engine only ever creates PENDING bookings and transitions them to
// CANCELLED; CONFIRMED exists for fulfilled bookings written by the
// (external) payment flow and is never produced by this module.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingConfirmed BookingStatus = "CONFIRMED"
)

// Booking records a customer's claim over a fixed-size set of seat
// units for one show occurrence.
//
// Fields:
//  ID         – primary key identifier, assigned by the ledger.
//  CustomerID – the customer owning the booking.
//  ShowID     – show occurrence the booking is against.
//  Status     – lifecycle state.
//  SeatCount  – number of seat units currently holding a reference to
//               this booking.  Zeroed when the booking is cancelled.
//  CreatedAt  – creation timestamp in UTC.
type Booking struct {
	ID         uint64        // bookings.id
	CustomerID uint64        // bookings.customer_id
	ShowID     uint64        // bookings.show_id
	Status     BookingStatus // bookings.status
	SeatCount  uint32        // bookings.seat_count
	CreatedAt  time.Time     // bookings.created_at
}

// Terminal reports whether the booking is in a terminal state.  A
// terminal booking never reacquires seats.
func (b *Booking) Terminal() bool {
	return b.Status == BookingCancelled
}
