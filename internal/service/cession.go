package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/queue"
	"github.com/iliyamo/parking-cession/internal/repository"
)

// MaxCessionDates bounds one CreateCession batch.
const MaxCessionDates = 62

// CessionService lets managers release their assigned spot on chosen
// days and take it back.
type CessionService struct {
	spots        SpotStore
	reservations ReservationStore
	cessions     CessionStore
	sync         CessionSyncer
	events       EventPublisher
	clock        clock.Clock
	logger       *slog.Logger
}

func NewCessionService(
	spots SpotStore,
	reservations ReservationStore,
	cessions CessionStore,
	sync CessionSyncer,
	events EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *CessionService {
	if events == nil {
		events = noopPublisher{}
	}
	return &CessionService{
		spots:        spots,
		reservations: reservations,
		cessions:     cessions,
		sync:         sync,
		events:       events,
		clock:        clk,
		logger:       logger,
	}
}

// CreateCession offers spotID on every given day and returns how many
// cessions were written. The batch is all or nothing.
func (s *CessionService) CreateCession(ctx context.Context, id model.Identity, spotID uint64, dates []time.Time) (int, error) {
	if id.UserID == 0 {
		return 0, unauthorizedError()
	}
	if !id.CanCede() {
		return 0, forbiddenError("only managers can cede a spot")
	}
	days, fields := s.normalizeDates(dates)
	if len(fields) > 0 {
		return 0, validationError(fields)
	}

	spot, err := s.spots.GetByID(ctx, spotID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, notFoundError("spot not found")
	}
	if err != nil {
		return 0, fail(s.logger, "load spot", err)
	}
	if spot.Type != model.SpotManagement || !spot.OwnedBy(id.UserID) {
		return 0, forbiddenError(MsgOnlyOwnSpot)
	}

	batch := make([]model.Cession, len(days))
	keys := make([]string, len(days))
	for i, d := range days {
		batch[i] = model.Cession{SpotID: spot.ID, UserID: id.UserID, Date: d, Status: model.CessionAvailable}
		keys[i] = model.DateKey(d)
	}
	if err := s.cessions.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, conflictError(MsgCessionExists, err)
		}
		return 0, fail(s.logger, "create cessions", err)
	}
	s.logger.Info("cessions created", "spot_id", spot.ID, "user_id", id.UserID, "count", len(batch))

	publish(ctx, s.events, s.clock, s.logger, queue.Event{
		Type:      queue.CessionCreated,
		SpotID:    spot.ID,
		SpotLabel: spot.Label,
		UserID:    id.UserID,
		Date:      keys[0],
		Dates:     keys,
	})
	return len(batch), nil
}

// normalizeDates validates and deduplicates the requested days and
// returns them in ascending order. Field errors are keyed by the
// position in the request, e.g. "dates[2]".
func (s *CessionService) normalizeDates(dates []time.Time) ([]time.Time, map[string]string) {
	fields := map[string]string{}
	if len(dates) == 0 {
		fields["dates"] = "at least one date is required"
		return nil, fields
	}
	today := clock.Today(s.clock)
	seen := make(map[string]bool, len(dates))
	days := make([]time.Time, 0, len(dates))
	for i, raw := range dates {
		d := model.CivilDate(raw)
		if d.Before(today) {
			fields[fmt.Sprintf("dates[%d]", i)] = "date must not be in the past"
			continue
		}
		if k := model.DateKey(d); !seen[k] {
			seen[k] = true
			days = append(days, d)
		}
	}
	if len(days) > MaxCessionDates {
		fields["dates"] = fmt.Sprintf("at most %d dates per request", MaxCessionDates)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, fields
}

// CancelCession withdraws a cession. When someone holds the spot that
// day, only an admin may proceed, and the holder's reservation is
// cancelled with it.
func (s *CessionService) CancelCession(ctx context.Context, id model.Identity, cessionID uint64) (CessionCancelResult, error) {
	if id.UserID == 0 {
		return CessionCancelResult{}, unauthorizedError()
	}
	c, err := s.cessions.GetByID(ctx, cessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return CessionCancelResult{}, notFoundError("cession not found")
	}
	if err != nil {
		return CessionCancelResult{}, fail(s.logger, "load cession", err)
	}
	if c.UserID != id.UserID && !id.IsAdmin() {
		return CessionCancelResult{}, forbiddenError("you can only cancel your own cessions")
	}
	if c.Status == model.CessionCancelled {
		return CessionCancelResult{ID: c.ID, AlreadyCancelled: true}, nil
	}

	// A plain owner may never evict a booked third party, whatever the
	// cession's recorded status says.
	if !id.IsAdmin() {
		held, err := s.dependentOf(ctx, c)
		if err != nil {
			return CessionCancelResult{}, fail(s.logger, "load dependent reservation", err)
		}
		if held != nil {
			return CessionCancelResult{}, conflictError(MsgCessionTaken, nil)
		}
	}

	changed, err := s.cessions.Cancel(ctx, c.ID, id.IsAdmin())
	if errors.Is(err, repository.ErrSpotOccupied) {
		return CessionCancelResult{}, conflictError(MsgCessionTaken, err)
	}
	if err != nil {
		return CessionCancelResult{}, fail(s.logger, "cancel cession", err)
	}
	if !changed {
		return CessionCancelResult{ID: c.ID, AlreadyCancelled: true}, nil
	}
	s.logger.Info("cession cancelled", "cession_id", c.ID, "spot_id", c.SpotID, "by", id.UserID)
	publish(ctx, s.events, s.clock, s.logger, queue.Event{
		Type:      queue.CessionCancelled,
		CessionID: c.ID,
		SpotID:    c.SpotID,
		UserID:    c.UserID,
		Date:      model.DateKey(c.Date),
	})

	// Looked up after the cancel: no reservation can land on the spot
	// once its cession is gone.
	dependent, err := s.dependentOf(ctx, c)
	if err != nil {
		s.logger.Error("cascade lookup failed", "cession_id", c.ID, "error", err)
		return CessionCancelResult{ID: c.ID}, cascadePartialError(err)
	}
	result := CessionCancelResult{ID: c.ID}
	if dependent == nil {
		return result, nil
	}
	cascaded, err := s.sync.CancelDependentReservation(ctx, dependent.ID)
	if err != nil {
		s.logger.Error("cascade cancel failed",
			"cession_id", c.ID, "reservation_id", dependent.ID, "error", err)
		return result, cascadePartialError(err)
	}
	result.ReservationAlsoCancelled = cascaded
	if cascaded {
		s.logger.Info("dependent reservation cancelled", "cession_id", c.ID, "reservation_id", dependent.ID)
		publish(ctx, s.events, s.clock, s.logger, queue.Event{
			Type:          queue.ReservationCancelled,
			ReservationID: dependent.ID,
			CessionID:     c.ID,
			SpotID:        c.SpotID,
			UserID:        dependent.UserID,
			Date:          model.DateKey(c.Date),
		})
	}
	return result, nil
}

func (s *CessionService) dependentOf(ctx context.Context, c *model.Cession) (*model.Reservation, error) {
	r, err := s.reservations.ConfirmedForSpot(ctx, c.SpotID, c.Date)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// ListMyCessions returns the caller's live cessions from from onward.
// A zero from means today.
func (s *CessionService) ListMyCessions(ctx context.Context, id model.Identity, from time.Time) ([]model.Cession, error) {
	if id.UserID == 0 {
		return nil, unauthorizedError()
	}
	if !id.CanCede() {
		return nil, forbiddenError("only managers have cessions")
	}
	if from.IsZero() {
		from = clock.Today(s.clock)
	}
	list, err := s.cessions.ListActiveByUser(ctx, id.UserID, model.CivilDate(from))
	if err != nil {
		return nil, fail(s.logger, "list cessions", err)
	}
	if list == nil {
		list = []model.Cession{}
	}
	return list, nil
}
