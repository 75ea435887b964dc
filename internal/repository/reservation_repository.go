package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-cession/internal/model"
)

// ReservationRepo provides persistence for single-day spot
// reservations.  The two "one per day" rules are enforced by unique
// indexes over a generated column that is NULL for cancelled rows, so
// history is kept while only confirmed rows collide.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, spot_id, user_id, date, status, note, created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var res model.Reservation
	var note sql.NullString
	if err := s.Scan(&res.ID, &res.SpotID, &res.UserID, &res.Date, &res.Status, &note, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return model.Reservation{}, err
	}
	res.Note = nullableString(note)
	return res, nil
}

// lockSpotTx takes a row lock on the spot so that reservation,
// visitor-booking and cession writes for the same spot are serialised.
// It returns the spot's type.
func lockSpotTx(ctx context.Context, tx *sql.Tx, spotID uint64) (model.SpotType, error) {
	var typ model.SpotType
	err := tx.QueryRowContext(ctx, `SELECT type FROM spots WHERE id = ? FOR UPDATE`, spotID).Scan(&typ)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return typ, err
}

// Create inserts a confirmed reservation.  Inside one transaction it
// locks the spot row, refuses when a confirmed visitor booking already
// holds the spot for that day (ErrSpotOccupied) or when a management
// spot has no available cession that day (ErrNotCeded), and maps
// unique-key violations to ErrConflict.  On success res.ID is populated.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
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

	typ, err := lockSpotTx(ctx, tx, res.SpotID)
	if err != nil {
		return err
	}
	var visitors int
	const vq = `SELECT COUNT(*) FROM visitor_bookings WHERE spot_id = ? AND date = ? AND status = 'confirmed'`
	if err := tx.QueryRowContext(ctx, vq, res.SpotID, dateArg(res.Date)).Scan(&visitors); err != nil {
		return err
	}
	if visitors > 0 {
		return ErrSpotOccupied
	}
	if typ == model.SpotManagement {
		var ceded int
		const cq = `SELECT COUNT(*) FROM cessions WHERE spot_id = ? AND date = ? AND status = 'available' FOR UPDATE`
		if err := tx.QueryRowContext(ctx, cq, res.SpotID, dateArg(res.Date)).Scan(&ceded); err != nil {
			return err
		}
		if ceded == 0 {
			return ErrNotCeded
		}
	}

	const ins = `INSERT INTO reservations (spot_id, user_id, date, status, note) VALUES (?, ?, ?, 'confirmed', ?)`
	result, err := tx.ExecContext(ctx, ins, res.SpotID, res.UserID, dateArg(res.Date), res.Note)
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
	res.ID = uint64(id)
	res.Status = model.ReservationConfirmed
	return nil
}

// GetByID loads a reservation in any status.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ExistsConfirmedForUser reports whether userID already holds a
// confirmed reservation on date.
func (r *ReservationRepo) ExistsConfirmedForUser(ctx context.Context, userID uint64, date time.Time) (bool, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE user_id = ? AND date = ? AND status = 'confirmed'`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID, dateArg(date)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConfirmedForSpot returns the confirmed reservation holding spotID on
// date, or ErrNotFound.
func (r *ReservationRepo) ConfirmedForSpot(ctx context.Context, spotID uint64, date time.Time) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE spot_id = ? AND date = ? AND status = 'confirmed' LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, spotID, dateArg(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ListConfirmedBetween returns confirmed reservations with from <= date <= to.
func (r *ReservationRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE date BETWEEN ? AND ? AND status = 'confirmed'
	           ORDER BY date, spot_id`
	rows, err := r.db.QueryContext(ctx, q, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListViewsByUser returns the confirmed reservations of userID from the
// given day onward, joined with their spot.
func (r *ReservationRepo) ListViewsByUser(ctx context.Context, userID uint64, from time.Time) ([]model.ReservationView, error) {
	const q = `SELECT r.id, r.spot_id, s.label, s.type, r.date, r.status, r.note
	           FROM reservations r
	           JOIN spots s ON s.id = r.spot_id
	           WHERE r.user_id = ? AND r.date >= ? AND r.status = 'confirmed'
	           ORDER BY r.date`
	rows, err := r.db.QueryContext(ctx, q, userID, dateArg(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.ReservationView{}
	for rows.Next() {
		var v model.ReservationView
		var date time.Time
		var note sql.NullString
		if err := rows.Scan(&v.ID, &v.SpotID, &v.SpotLabel, &v.SpotType, &date, &v.Status, &note); err != nil {
			return nil, err
		}
		v.Date = model.DateKey(date)
		v.Note = nullableString(note)
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel flips a confirmed reservation to cancelled.  It reports false
// when no row matched, i.e. the reservation was already cancelled.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations SET status = 'cancelled', updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'confirmed'`
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
