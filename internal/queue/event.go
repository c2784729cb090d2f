// Package queue defines the booking lifecycle events exchanged over
// the message broker and the publisher/consumer pair that moves them.
package queue

// Event type names published to the booking.events queue.
const (
	EventBookingCreated   = "booking.created"
	EventBookingSwapped   = "booking.swapped"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a successful engine operation.  It
// carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
	EventID    string   `json:"event_id"`
	Type       string   `json:"type"`
	BookingID  uint64   `json:"booking_id"`
	CustomerID uint64   `json:"customer_id,omitempty"`
	ShowID     uint64   `json:"show_id"`
	SeatIDs    []uint64 `json:"seat_ids,omitempty"`
	TotalCents uint32   `json:"total_cents,omitempty"`
	OccurredAt string   `json:"occurred_at"`
}
