package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/parking-cession/internal/model"
)

// CessionRepo provides persistence for managers' spot releases.  At
// most one non-cancelled cession may exist per spot and day; the
// unique index covers a generated column that is NULL once a row is
// cancelled.
//
// Status flips caused by other people's reservations do not go through
// this repo; see CessionSync.
type CessionRepo struct {
	db *sql.DB
}

// NewCessionRepo returns a new CessionRepo bound to the given database.
func NewCessionRepo(db *sql.DB) *CessionRepo { return &CessionRepo{db: db} }

const cessionColumns = `id, spot_id, user_id, date, status, created_at, updated_at`

func scanCession(s rowScanner) (model.Cession, error) {
	var c model.Cession
	err := s.Scan(&c.ID, &c.SpotID, &c.UserID, &c.Date, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CessionRepo) list(ctx context.Context, q string, args ...any) ([]model.Cession, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Cession{}
	for rows.Next() {
		c, err := scanCession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateBatch inserts one available cession per element in a single
// statement inside a transaction.  Either every row is written or none:
// a unique-key violation on any day rolls the batch back and returns
// ErrConflict.
func (r *CessionRepo) CreateBatch(ctx context.Context, cessions []model.Cession) error {
	if len(cessions) == 0 {
		return nil
	}
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

	var sb strings.Builder
	sb.WriteString(`INSERT INTO cessions (spot_id, user_id, date, status) VALUES `)
	args := make([]any, 0, len(cessions)*3)
	for i, c := range cessions {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, 'available')")
		args = append(args, c.SpotID, c.UserID, dateArg(c.Date))
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a cession in any status.
func (r *CessionRepo) GetByID(ctx context.Context, id uint64) (*model.Cession, error) {
	const q = `SELECT ` + cessionColumns + ` FROM cessions WHERE id = ?`
	c, err := scanCession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListActiveBetween returns non-cancelled cessions with from <= date <= to.
func (r *CessionRepo) ListActiveBetween(ctx context.Context, from, to time.Time) ([]model.Cession, error) {
	const q = `SELECT ` + cessionColumns + ` FROM cessions
	           WHERE date BETWEEN ? AND ? AND status <> 'cancelled'
	           ORDER BY date, spot_id`
	return r.list(ctx, q, dateArg(from), dateArg(to))
}

// ListActiveForSpotBetween is ListActiveBetween restricted to one spot.
func (r *CessionRepo) ListActiveForSpotBetween(ctx context.Context, spotID uint64, from, to time.Time) ([]model.Cession, error) {
	const q = `SELECT ` + cessionColumns + ` FROM cessions
	           WHERE spot_id = ? AND date BETWEEN ? AND ? AND status <> 'cancelled'
	           ORDER BY date`
	return r.list(ctx, q, spotID, dateArg(from), dateArg(to))
}

// ListActiveByUser returns the caller's non-cancelled cessions from the
// given day onward.
func (r *CessionRepo) ListActiveByUser(ctx context.Context, userID uint64, from time.Time) ([]model.Cession, error) {
	const q = `SELECT ` + cessionColumns + ` FROM cessions
	           WHERE user_id = ? AND date >= ? AND status <> 'cancelled'
	           ORDER BY date`
	return r.list(ctx, q, userID, dateArg(from))
}

// Cancel moves an available or reserved cession to cancelled.  The
// spot row is locked first so the check below cannot race a
// reservation insert.  Unless evict is set, a confirmed reservation on
// the spot and day refuses the cancel with ErrSpotOccupied.  It reports
// false when no row matched (already cancelled).
func (r *CessionRepo) Cancel(ctx context.Context, id uint64, evict bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var spotID uint64
	var date time.Time
	err = tx.QueryRowContext(ctx, `SELECT spot_id, date FROM cessions WHERE id = ?`, id).Scan(&spotID, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if _, err := lockSpotTx(ctx, tx, spotID); err != nil {
		return false, err
	}
	if !evict {
		var held int
		const rq = `SELECT COUNT(*) FROM reservations WHERE spot_id = ? AND date = ? AND status = 'confirmed'`
		if err := tx.QueryRowContext(ctx, rq, spotID, dateArg(date)).Scan(&held); err != nil {
			return false, err
		}
		if held > 0 {
			return false, ErrSpotOccupied
		}
	}

	const q = `UPDATE cessions SET status = 'cancelled', updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status IN ('available', 'reserved')`
	result, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return n > 0, nil
}

// ListDrifted finds live cessions from the given day onward whose
// status disagrees with the reservations table: available while a
// confirmed reservation holds the spot, or reserved while none does.
func (r *CessionRepo) ListDrifted(ctx context.Context, from time.Time) ([]model.DriftedCession, error) {
	const q = `SELECT c.id, c.spot_id, c.date, c.status, (res.id IS NOT NULL) AS has_reservation
	           FROM cessions c
	           LEFT JOIN reservations res
	             ON res.spot_id = c.spot_id AND res.date = c.date AND res.status = 'confirmed'
	           WHERE c.date >= ? AND c.status <> 'cancelled'
	             AND ((c.status = 'available' AND res.id IS NOT NULL)
	               OR (c.status = 'reserved' AND res.id IS NULL))
	           ORDER BY c.date, c.id`
	rows, err := r.db.QueryContext(ctx, q, dateArg(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.DriftedCession
	for rows.Next() {
		var d model.DriftedCession
		if err := rows.Scan(&d.ID, &d.SpotID, &d.Date, &d.Status, &d.HasReservation); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
