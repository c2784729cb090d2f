package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/model"
)

// BookingRepo is the MySQL-backed booking ledger.  Ids come from the
// table's AUTO_INCREMENT sequence, never from scanning existing rows.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a new booking and populates the generated ID on the
// passed record.  CreatedAt must be set by the caller, in UTC.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO bookings (customer_id, show_id, status, seat_count, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.CustomerID, b.ShowID, string(b.Status), b.SeatCount, b.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID returns the booking or engine.ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, customer_id, show_id, status, seat_count, created_at
               FROM bookings WHERE id = ?`
	var b model.Booking
	var status string
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.CustomerID, &b.ShowID, &status, &b.SeatCount, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrBookingNotFound
		}
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// MarkCancelled sets the booking's status to CANCELLED and zeroes its
// seat count so the ledger matches the (about to be) empty holdings.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id uint64) error {
	const q = `UPDATE bookings SET status = ?, seat_count = 0 WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(model.BookingCancelled), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrBookingNotFound
	}
	return nil
}

// ListByStatus returns all bookings with the given status ordered by
// id ascending.
func (r *BookingRepo) ListByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	const q = `SELECT id, customer_id, show_id, status, seat_count, created_at
               FROM bookings WHERE status = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Booking
	for rows.Next() {
		var b model.Booking
		var s string
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.ShowID, &s, &b.SeatCount, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(s)
		list = append(list, b)
	}
	return list, rows.Err()
}

// Delete removes the booking row.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return err
}
