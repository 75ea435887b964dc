package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/queue"
	"github.com/iliyamo/parking-cession/internal/repository"
)

// ReservationService creates and cancels employee reservations and
// keeps the cession of a booked management spot in step.
type ReservationService struct {
	spots        SpotStore
	reservations ReservationStore
	cessions     CessionStore
	sync         CessionSyncer
	events       EventPublisher
	clock        clock.Clock
	logger       *slog.Logger
}

func NewReservationService(
	spots SpotStore,
	reservations ReservationStore,
	cessions CessionStore,
	sync CessionSyncer,
	events EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *ReservationService {
	if events == nil {
		events = noopPublisher{}
	}
	return &ReservationService{
		spots:        spots,
		reservations: reservations,
		cessions:     cessions,
		sync:         sync,
		events:       events,
		clock:        clk,
		logger:       logger,
	}
}

// CreateReservationInput is a request to hold SpotID on Date.
type CreateReservationInput struct {
	SpotID uint64
	Date   time.Time
	Note   *string
}

// CreateReservation books a spot for the caller and returns the new
// reservation id. Booking a management spot consumes its available
// cession for that day.
func (s *ReservationService) CreateReservation(ctx context.Context, id model.Identity, in CreateReservationInput) (uint64, error) {
	if id.UserID == 0 {
		return 0, unauthorizedError()
	}
	date := model.CivilDate(in.Date)
	if date.Before(clock.Today(s.clock)) {
		return 0, validationError(map[string]string{"date": "date must not be in the past"})
	}

	held, err := s.reservations.ExistsConfirmedForUser(ctx, id.UserID, date)
	if err != nil {
		return 0, fail(s.logger, "check existing reservation", err)
	}
	if held {
		return 0, conflictError(MsgAlreadyReservedThatDay, nil)
	}

	spot, err := s.spots.GetByID(ctx, in.SpotID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !spot.IsActive) {
		return 0, notFoundError("spot not found")
	}
	if err != nil {
		return 0, fail(s.logger, "load spot", err)
	}
	if spot.Type == model.SpotManagement {
		ok, err := s.hasAvailableCession(ctx, spot.ID, date)
		if err != nil {
			return 0, fail(s.logger, "load cession", err)
		}
		if !ok {
			return 0, conflictError(MsgSpotNotAvailable, nil)
		}
	}

	res := &model.Reservation{SpotID: spot.ID, UserID: id.UserID, Date: date, Note: trimNote(in.Note)}
	if err := s.reservations.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrNotCeded) {
			return 0, conflictError(MsgSpotNotAvailable, err)
		}
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrSpotOccupied) {
			return 0, conflictError(MsgSpotAlreadyReserved, err)
		}
		return 0, fail(s.logger, "create reservation", err)
	}
	s.logger.Info("reservation created",
		"reservation_id", res.ID, "spot_id", spot.ID, "user_id", id.UserID, "date", model.DateKey(date))

	if spot.Type == model.SpotManagement {
		s.transition(ctx, spot.ID, date, model.CessionAvailable, model.CessionReserved)
	}
	s.publish(ctx, queue.Event{
		Type:          queue.ReservationCreated,
		ReservationID: res.ID,
		SpotID:        spot.ID,
		SpotLabel:     spot.Label,
		UserID:        id.UserID,
		Date:          model.DateKey(date),
	})
	return res.ID, nil
}

// CancelReservation cancels one of the caller's reservations. A second
// cancel of the same reservation succeeds with AlreadyCancelled set.
func (s *ReservationService) CancelReservation(ctx context.Context, id model.Identity, reservationID uint64) (CancelAck, error) {
	if id.UserID == 0 {
		return CancelAck{}, unauthorizedError()
	}
	res, err := s.reservations.GetByID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return CancelAck{}, notFoundError("reservation not found")
	}
	if err != nil {
		return CancelAck{}, fail(s.logger, "load reservation", err)
	}
	if res.UserID != id.UserID {
		return CancelAck{}, forbiddenError("you can only cancel your own reservations")
	}

	changed, err := s.reservations.Cancel(ctx, res.ID)
	if err != nil {
		return CancelAck{}, fail(s.logger, "cancel reservation", err)
	}
	if !changed {
		return CancelAck{ID: res.ID, AlreadyCancelled: true}, nil
	}
	s.logger.Info("reservation cancelled", "reservation_id", res.ID, "user_id", id.UserID)

	label := ""
	spot, err := s.spots.GetByID(ctx, res.SpotID)
	switch {
	case err != nil:
		s.logger.Warn("cession sync skipped: spot lookup failed", "reservation_id", res.ID, "spot_id", res.SpotID, "error", err)
	case spot.Type == model.SpotManagement:
		label = spot.Label
		s.transition(ctx, spot.ID, res.Date, model.CessionReserved, model.CessionAvailable)
	default:
		label = spot.Label
	}
	s.publish(ctx, queue.Event{
		Type:          queue.ReservationCancelled,
		ReservationID: res.ID,
		SpotID:        res.SpotID,
		SpotLabel:     label,
		UserID:        id.UserID,
		Date:          model.DateKey(res.Date),
	})
	return CancelAck{ID: res.ID}, nil
}

// ListMyReservations returns the caller's confirmed reservations from
// from onward. A zero from means today.
func (s *ReservationService) ListMyReservations(ctx context.Context, id model.Identity, from time.Time) ([]model.ReservationView, error) {
	if id.UserID == 0 {
		return nil, unauthorizedError()
	}
	if from.IsZero() {
		from = clock.Today(s.clock)
	}
	views, err := s.reservations.ListViewsByUser(ctx, id.UserID, model.CivilDate(from))
	if err != nil {
		return nil, fail(s.logger, "list reservations", err)
	}
	if views == nil {
		views = []model.ReservationView{}
	}
	return views, nil
}

func (s *ReservationService) hasAvailableCession(ctx context.Context, spotID uint64, date time.Time) (bool, error) {
	cs, err := s.cessions.ListActiveForSpotBetween(ctx, spotID, date, date)
	if err != nil {
		return false, err
	}
	for _, c := range cs {
		if c.Status == model.CessionAvailable {
			return true, nil
		}
	}
	return false, nil
}

// transition runs a sync write. Failures are logged for the reconciler
// and never surface to the caller.
func (s *ReservationService) transition(ctx context.Context, spotID uint64, date time.Time, from, to model.CessionStatus) {
	changed, err := s.sync.Transition(ctx, spotID, date, from, to)
	if err != nil {
		s.logger.Warn("cession sync failed",
			"spot_id", spotID, "date", model.DateKey(date), "from", from, "to", to, "error", err)
		return
	}
	if !changed {
		s.logger.Warn("cession sync found no matching cession",
			"spot_id", spotID, "date", model.DateKey(date), "from", from, "to", to)
	}
}

func (s *ReservationService) publish(ctx context.Context, ev queue.Event) {
	publish(ctx, s.events, s.clock, s.logger, ev)
}

func publish(ctx context.Context, events EventPublisher, clk clock.Clock, logger *slog.Logger, ev queue.Event) {
	ev.OccurredAt = clk.Now().UTC()
	if err := events.Publish(ctx, ev); err != nil {
		logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}

func trimNote(note *string) *string {
	if note == nil {
		return nil
	}
	t := strings.TrimSpace(*note)
	if t == "" {
		return nil
	}
	return &t
}
