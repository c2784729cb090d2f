package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/model"
)

// MemoryStore is an in-memory implementation of the inventory store,
// the booking ledger and the show catalog in one.  It backs tests and
// single-process deployments that run without MySQL.  All methods are
// safe for concurrent use; each one is atomic under the store's
// mutex, mirroring the per-statement atomicity of the SQL
// implementations.
type MemoryStore struct {
	mu            sync.Mutex
	shows         map[uint64]struct{}
	seats         map[uint64]*model.SeatUnit
	bookings      map[uint64]*model.Booking
	nextSeatID    uint64
	nextBookingID uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shows:    make(map[uint64]struct{}),
		seats:    make(map[uint64]*model.SeatUnit),
		bookings: make(map[uint64]*model.Booking),
	}
}

// AddShow registers a show occurrence in the catalog.
func (m *MemoryStore) AddShow(showID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[showID] = struct{}{}
}

// ShowExists reports whether the show occurrence is known.
func (m *MemoryStore) ShowExists(_ context.Context, showID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.shows[showID]
	return ok, nil
}

// CreateUnits provisions seat units for a show and returns their ids.
func (m *MemoryStore) CreateUnits(_ context.Context, showID uint64, prices []uint32) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(prices))
	for _, p := range prices {
		m.nextSeatID++
		id := m.nextSeatID
		m.seats[id] = &model.SeatUnit{ID: id, ShowID: showID, PriceCents: p}
		ids = append(ids, id)
	}
	return ids, nil
}

// AvailableByShow returns copies of all unheld units for the show in
// ascending id order.
func (m *MemoryStore) AvailableByShow(_ context.Context, showID uint64) ([]model.SeatUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var units []model.SeatUnit
	for _, s := range m.seats {
		if s.ShowID == showID && s.BookingID == nil {
			units = append(units, *s)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

// HeldByBooking returns copies of all units held by the booking in
// ascending id order.
func (m *MemoryStore) HeldByBooking(_ context.Context, bookingID uint64) ([]model.SeatUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var units []model.SeatUnit
	for _, s := range m.seats {
		if s.BookingID != nil && *s.BookingID == bookingID {
			u := *s
			h := bookingID
			u.BookingID = &h
			units = append(units, u)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

// Claim assigns the holder on all given units or none of them.  A unit
// that is missing, belongs to another show, or is already held fails
// the whole claim with engine.ErrInsufficientInventory.
func (m *MemoryStore) Claim(_ context.Context, showID uint64, seatIDs []uint64, bookingID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range seatIDs {
		s, ok := m.seats[id]
		if !ok || s.ShowID != showID || s.BookingID != nil {
			return engine.ErrInsufficientInventory
		}
	}
	for _, id := range seatIDs {
		h := bookingID
		m.seats[id].BookingID = &h
	}
	return nil
}

// ReleaseUnits clears the holder on the given units where the holder
// matches the booking.
func (m *MemoryStore) ReleaseUnits(_ context.Context, bookingID uint64, seatIDs []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range seatIDs {
		if s, ok := m.seats[id]; ok && s.BookingID != nil && *s.BookingID == bookingID {
			s.BookingID = nil
		}
	}
	return nil
}

// ReleaseByBooking clears the holder on every unit referencing the
// booking and returns the released ids in ascending order.
func (m *MemoryStore) ReleaseByBooking(_ context.Context, bookingID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uint64{}
	for _, s := range m.seats {
		if s.BookingID != nil && *s.BookingID == bookingID {
			s.BookingID = nil
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Create inserts a booking, assigning the next id from the store's
// monotonic counter.
func (m *MemoryStore) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookingID++
	b.ID = m.nextBookingID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

// GetByID returns a copy of the booking or engine.ErrBookingNotFound.
func (m *MemoryStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, engine.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// MarkCancelled transitions the booking to CANCELLED and zeroes its
// seat count.
func (m *MemoryStore) MarkCancelled(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return engine.ErrBookingNotFound
	}
	b.Status = model.BookingCancelled
	b.SeatCount = 0
	return nil
}

// ListByStatus returns copies of all bookings with the given status in
// ascending id order.
func (m *MemoryStore) ListByStatus(_ context.Context, status model.BookingStatus) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []model.Booking
	for _, b := range m.bookings {
		if b.Status == status {
			list = append(list, *b)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Delete removes the booking.
func (m *MemoryStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, id)
	return nil
}
