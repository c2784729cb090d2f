package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/model"
)

// SeatUnitRepo is the MySQL-backed inventory store.  One row in
// show_seat_units exists per seat per show; booking_id is the holder
// column and NULL means the seat is free.  Prices are written once at
// provisioning time and never updated afterwards.
type SeatUnitRepo struct {
	db *sql.DB
}

// NewSeatUnitRepo returns a SeatUnitRepo bound to the given database.
func NewSeatUnitRepo(db *sql.DB) *SeatUnitRepo { return &SeatUnitRepo{db: db} }

// AvailableByShow returns all unheld seat units for the show ordered
// by id ascending, giving the engine its deterministic selection
// order.
func (r *SeatUnitRepo) AvailableByShow(ctx context.Context, showID uint64) ([]model.SeatUnit, error) {
	const q = `SELECT id, show_id, price_cents
               FROM show_seat_units
               WHERE show_id = ? AND booking_id IS NULL
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []model.SeatUnit
	for rows.Next() {
		var u model.SeatUnit
		if err := rows.Scan(&u.ID, &u.ShowID, &u.PriceCents); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// HeldByBooking returns every seat unit currently referencing the
// booking, ordered by id ascending.
func (r *SeatUnitRepo) HeldByBooking(ctx context.Context, bookingID uint64) ([]model.SeatUnit, error) {
	const q = `SELECT id, show_id, price_cents, booking_id
               FROM show_seat_units
               WHERE booking_id = ?
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []model.SeatUnit
	for rows.Next() {
		var u model.SeatUnit
		var holder sql.NullInt64
		if err := rows.Scan(&u.ID, &u.ShowID, &u.PriceCents, &holder); err != nil {
			return nil, err
		}
		if holder.Valid {
			h := uint64(holder.Int64)
			u.BookingID = &h
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Claim assigns the holder on the given seat units in one transaction.
// The UPDATE only matches rows whose booking_id is still NULL, so a
// concurrent claim that slipped past the availability read shows up as
// a short row count; in that case the transaction rolls back and
// engine.ErrInsufficientInventory is returned with no unit modified.
func (r *SeatUnitRepo) Claim(ctx context.Context, showID uint64, seatIDs []uint64, bookingID uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE show_seat_units SET booking_id = ?
              WHERE show_id = ? AND booking_id IS NULL AND id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, bookingID, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		return engine.ErrInsufficientInventory
	}
	return tx.Commit()
}

// ReleaseUnits clears the holder on the given units where the holder
// is the supplied booking.  Units held by other bookings are not
// touched.
func (r *SeatUnitRepo) ReleaseUnits(ctx context.Context, bookingID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `UPDATE show_seat_units SET booking_id = NULL
              WHERE booking_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, bookingID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ReleaseByBooking clears the holder on every unit referencing the
// booking and returns the released ids.  The select and update run in
// one transaction so the returned ids match exactly what was freed.
func (r *SeatUnitRepo) ReleaseByBooking(ctx context.Context, bookingID uint64) ([]uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM show_seat_units WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uint64{}, tx.Commit()
	}
	if _, err = tx.ExecContext(ctx, `UPDATE show_seat_units SET booking_id = NULL WHERE booking_id = ?`, bookingID); err != nil {
		return nil, err
	}
	return ids, tx.Commit()
}

// CreateUnits provisions seat units for a show in one bulk INSERT and
// returns the ids of the new rows.  Provisioning happens when a show's
// seating is set up; the engine never creates or deletes units.
func (r *SeatUnitRepo) CreateUnits(ctx context.Context, showID uint64, prices []uint32) ([]uint64, error) {
	if len(prices) == 0 {
		return []uint64{}, nil
	}
	query := `INSERT INTO show_seat_units (show_id, price_cents) VALUES `
	args := make([]interface{}, 0, len(prices)*2)
	for i, p := range prices {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, showID, p)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// MySQL reports the first auto-generated id of a multi-row insert;
	// the rest follow consecutively.
	first, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(prices))
	for i := range prices {
		ids[i] = uint64(first) + uint64(i)
	}
	return ids, nil
}

// placeholders builds "?, ?, ..." for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
