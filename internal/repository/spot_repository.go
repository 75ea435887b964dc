package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-cession/internal/model"
)

// SpotRepo reads the spot catalogue.  Spots are maintained by an
// administrative tool; nothing in this service writes them.
type SpotRepo struct {
	db *sql.DB
}

// NewSpotRepo constructs a SpotRepo with the given DB handle.
func NewSpotRepo(db *sql.DB) *SpotRepo {
	return &SpotRepo{db: db}
}

const spotColumns = `id, label, type, assigned_to, is_active`

func scanSpot(s rowScanner) (model.Spot, error) {
	var sp model.Spot
	var assigned sql.NullInt64
	if err := s.Scan(&sp.ID, &sp.Label, &sp.Type, &assigned, &sp.IsActive); err != nil {
		return model.Spot{}, err
	}
	sp.AssignedTo = nullableUint(assigned)
	return sp, nil
}

// ListActive returns every active spot ordered by label.
func (r *SpotRepo) ListActive(ctx context.Context) ([]model.Spot, error) {
	const q = `SELECT ` + spotColumns + ` FROM spots WHERE is_active = 1 ORDER BY label`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Spot
	for rows.Next() {
		sp, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a spot by id regardless of its active flag.
func (r *SpotRepo) GetByID(ctx context.Context, id uint64) (*model.Spot, error) {
	const q = `SELECT ` + spotColumns + ` FROM spots WHERE id = ?`
	sp, err := scanSpot(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sp, nil
}

// GetAssignedTo returns the active management spot owned by userID, or
// ErrNotFound when the user owns none.
func (r *SpotRepo) GetAssignedTo(ctx context.Context, userID uint64) (*model.Spot, error) {
	const q = `SELECT ` + spotColumns + ` FROM spots
	           WHERE assigned_to = ? AND type = 'management' AND is_active = 1
	           ORDER BY id LIMIT 1`
	sp, err := scanSpot(r.db.QueryRowContext(ctx, q, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sp, nil
}
