package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-cession/internal/model"
)

// VisitorBookingRepo persists spots blocked for external guests.  The
// lane is independent of reservations and cessions apart from the
// spot-level exclusion checked in Create.
type VisitorBookingRepo struct {
	db *sql.DB
}

// NewVisitorBookingRepo returns a new VisitorBookingRepo bound to the given database.
func NewVisitorBookingRepo(db *sql.DB) *VisitorBookingRepo { return &VisitorBookingRepo{db: db} }

const visitorColumns = `id, spot_id, created_by, date, visitor_name, visitor_company, visitor_email, status, notification_sent, created_at`

func scanVisitorBooking(s rowScanner) (model.VisitorBooking, error) {
	var v model.VisitorBooking
	var company sql.NullString
	if err := s.Scan(&v.ID, &v.SpotID, &v.CreatedBy, &v.Date, &v.VisitorName, &company,
		&v.VisitorEmail, &v.Status, &v.NotificationSent, &v.CreatedAt); err != nil {
		return model.VisitorBooking{}, err
	}
	v.VisitorCompany = nullableString(company)
	return v, nil
}

// Create inserts a confirmed visitor booking.  The spot row is locked
// for the duration of the transaction; a confirmed reservation on the
// same spot and day yields ErrSpotOccupied and a second visitor booking
// yields ErrConflict.  On success v.ID is populated.
func (r *VisitorBookingRepo) Create(ctx context.Context, v *model.VisitorBooking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := lockSpotTx(ctx, tx, v.SpotID); err != nil {
		return err
	}
	var reserved int
	const rq = `SELECT COUNT(*) FROM reservations WHERE spot_id = ? AND date = ? AND status = 'confirmed'`
	if err := tx.QueryRowContext(ctx, rq, v.SpotID, dateArg(v.Date)).Scan(&reserved); err != nil {
		return err
	}
	if reserved > 0 {
		return ErrSpotOccupied
	}

	const ins = `INSERT INTO visitor_bookings (spot_id, created_by, date, visitor_name, visitor_company, visitor_email, status)
	             VALUES (?, ?, ?, ?, ?, ?, 'confirmed')`
	result, err := tx.ExecContext(ctx, ins, v.SpotID, v.CreatedBy, dateArg(v.Date), v.VisitorName, v.VisitorCompany, v.VisitorEmail)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	v.ID = uint64(id)
	v.Status = model.VisitorConfirmed
	return nil
}

// GetByID loads a visitor booking in any status.
func (r *VisitorBookingRepo) GetByID(ctx context.Context, id uint64) (*model.VisitorBooking, error) {
	const q = `SELECT ` + visitorColumns + ` FROM visitor_bookings WHERE id = ?`
	v, err := scanVisitorBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListConfirmedBetween returns confirmed visitor bookings with
// from <= date <= to.
func (r *VisitorBookingRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.VisitorBooking, error) {
	const q = `SELECT ` + visitorColumns + ` FROM visitor_bookings
	           WHERE date BETWEEN ? AND ? AND status = 'confirmed'
	           ORDER BY date, spot_id`
	rows, err := r.db.QueryContext(ctx, q, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.VisitorBooking
	for rows.Next() {
		v, err := scanVisitorBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel flips a confirmed visitor booking to cancelled and reports
// whether a row changed.
func (r *VisitorBookingRepo) Cancel(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE visitor_bookings SET status = 'cancelled' WHERE id = ? AND status = 'confirmed'`
	result, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkNotified records that the guest notification went out.
func (r *VisitorBookingRepo) MarkNotified(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE visitor_bookings SET notification_sent = 1 WHERE id = ?`, id)
	return err
}
