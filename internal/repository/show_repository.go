package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ShowRepo answers existence checks against the shows catalog table.
// The catalog itself is maintained elsewhere; the reservation core
// only needs to know whether a show occurrence exists.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo returns a ShowRepo bound to the given database.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

// ShowExists reports whether a show with the given id exists.
func (r *ShowRepo) ShowExists(ctx context.Context, showID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM shows WHERE id = ?`, showID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
