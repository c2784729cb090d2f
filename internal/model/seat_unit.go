package model

// SeatUnit is a single priced, individually allocatable seat for one
// show occurrence.  There is one row per seat per show.  The holder is
// the booking currently claiming the seat; a nil BookingID means the
// seat is available.
//
// Fields:
//  ID         – primary key identifier, stable across the seat's lifetime.
//  ShowID     – the show occurrence this seat belongs to.
//  PriceCents – price in cents, fixed when the seat is provisioned.
//  BookingID  – holder reference; nil when the seat is unheld.
type SeatUnit struct {
	ID         uint64  // show_seat_units.id
	ShowID     uint64  // show_seat_units.show_id
	PriceCents uint32  // show_seat_units.price_cents
	BookingID  *uint64 // show_seat_units.booking_id, NULL when free
}

// Held reports whether the seat is currently claimed by a booking.
func (s *SeatUnit) Held() bool {
	return s.BookingID != nil
}
