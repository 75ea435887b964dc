package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parking-cession/internal/model"
)

// CessionSync is the only write path that touches rows the caller does
// not own.  It runs on its own connection pool, opened with the
// privileged sync credentials, and exposes exactly two operations:
// flipping a cession between available and reserved, and cancelling
// the reservation that depends on a cancelled cession.
type CessionSync struct {
	db *sql.DB
}

// NewCessionSync binds the sync capability to the privileged pool.
func NewCessionSync(db *sql.DB) *CessionSync { return &CessionSync{db: db} }

// Transition flips the live cession on spotID/date from one status to
// the other.  Only available -> reserved and reserved -> available are
// accepted.  It reports false when no cession was in the expected
// status.
func (s *CessionSync) Transition(ctx context.Context, spotID uint64, date time.Time, from, to model.CessionStatus) (bool, error) {
	if !validTransition(from, to) {
		return false, ErrInvalidTransition
	}
	const q = `UPDATE cessions SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE spot_id = ? AND date = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, q, string(to), spotID, dateArg(date), string(from))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelDependentReservation cancels the confirmed reservation that
// occupied a cession which has just been cancelled.  It reports false
// when the reservation was no longer confirmed.
func (s *CessionSync) CancelDependentReservation(ctx context.Context, reservationID uint64) (bool, error) {
	const q = `UPDATE reservations SET status = 'cancelled', updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'confirmed'`
	result, err := s.db.ExecContext(ctx, q, reservationID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func validTransition(from, to model.CessionStatus) bool {
	return (from == model.CessionAvailable && to == model.CessionReserved) ||
		(from == model.CessionReserved && to == model.CessionAvailable)
}
