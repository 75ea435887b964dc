package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/queue"
	"github.com/iliyamo/parking-cession/internal/repository"
)

const maxVisitorField = 100

var fieldValidator = validator.New()

// VisitorService books spots for external guests. Visitor bookings
// never touch cessions; they only exclude the spot for the day.
type VisitorService struct {
	spots    SpotStore
	visitors VisitorStore
	events   EventPublisher
	clock    clock.Clock
	logger   *slog.Logger
}

func NewVisitorService(
	spots SpotStore,
	visitors VisitorStore,
	events EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *VisitorService {
	if events == nil {
		events = noopPublisher{}
	}
	return &VisitorService{
		spots:    spots,
		visitors: visitors,
		events:   events,
		clock:    clk,
		logger:   logger,
	}
}

// CreateVisitorBookingInput describes one guest visit.
type CreateVisitorBookingInput struct {
	SpotID  uint64
	Date    time.Time
	Visitor model.VisitorInfo
}

// CreateVisitorBooking blocks a spot for a guest and returns the
// booking id.
func (s *VisitorService) CreateVisitorBooking(ctx context.Context, id model.Identity, in CreateVisitorBookingInput) (uint64, error) {
	if id.UserID == 0 {
		return 0, unauthorizedError()
	}
	date := model.CivilDate(in.Date)
	visitor, fields := s.checkVisitor(in.Visitor)
	if date.Before(clock.Today(s.clock)) {
		fields["date"] = "date must not be in the past"
	}
	if len(fields) > 0 {
		return 0, validationError(fields)
	}

	spot, err := s.spots.GetByID(ctx, in.SpotID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !spot.IsActive) {
		return 0, notFoundError("spot not found")
	}
	if err != nil {
		return 0, fail(s.logger, "load spot", err)
	}

	vb := &model.VisitorBooking{
		SpotID:         spot.ID,
		CreatedBy:      id.UserID,
		Date:           date,
		VisitorName:    visitor.Name,
		VisitorCompany: visitor.Company,
		VisitorEmail:   visitor.Email,
		Status:         model.VisitorConfirmed,
	}
	if err := s.visitors.Create(ctx, vb); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrSpotOccupied) {
			return 0, conflictError(MsgVisitorSpotTaken, err)
		}
		return 0, fail(s.logger, "create visitor booking", err)
	}
	s.logger.Info("visitor booking created",
		"visitor_booking_id", vb.ID, "spot_id", spot.ID, "created_by", id.UserID, "date", model.DateKey(date))

	publish(ctx, s.events, s.clock, s.logger, queue.Event{
		Type:             queue.VisitorCreated,
		VisitorBookingID: vb.ID,
		SpotID:           spot.ID,
		SpotLabel:        spot.Label,
		UserID:           id.UserID,
		Date:             model.DateKey(date),
		VisitorName:      vb.VisitorName,
		VisitorEmail:     vb.VisitorEmail,
	})
	return vb.ID, nil
}

// checkVisitor trims the guest fields and reports what is wrong with
// them, keyed by request field name.
func (s *VisitorService) checkVisitor(v model.VisitorInfo) (model.VisitorInfo, map[string]string) {
	fields := map[string]string{}
	out := model.VisitorInfo{
		Name:  strings.TrimSpace(v.Name),
		Email: strings.TrimSpace(v.Email),
	}
	if v.Company != nil {
		if c := strings.TrimSpace(*v.Company); c != "" {
			out.Company = &c
		}
	}

	switch {
	case out.Name == "":
		fields["visitor_name"] = "visitor name is required"
	case utf8.RuneCountInString(out.Name) > maxVisitorField:
		fields["visitor_name"] = "visitor name is too long"
	}
	if out.Company != nil && utf8.RuneCountInString(*out.Company) > maxVisitorField {
		fields["visitor_company"] = "visitor company is too long"
	}
	switch {
	case out.Email == "":
		fields["visitor_email"] = "visitor email is required"
	case fieldValidator.Var(out.Email, "email") != nil:
		fields["visitor_email"] = "visitor email is not valid"
	}
	return out, fields
}

// CancelVisitorBooking cancels a visitor booking created by the caller.
func (s *VisitorService) CancelVisitorBooking(ctx context.Context, id model.Identity, bookingID uint64) (CancelAck, error) {
	if id.UserID == 0 {
		return CancelAck{}, unauthorizedError()
	}
	vb, err := s.visitors.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return CancelAck{}, notFoundError("visitor booking not found")
	}
	if err != nil {
		return CancelAck{}, fail(s.logger, "load visitor booking", err)
	}
	if vb.CreatedBy != id.UserID {
		return CancelAck{}, forbiddenError("you can only cancel visitor bookings you created")
	}

	changed, err := s.visitors.Cancel(ctx, vb.ID)
	if err != nil {
		return CancelAck{}, fail(s.logger, "cancel visitor booking", err)
	}
	if !changed {
		return CancelAck{ID: vb.ID, AlreadyCancelled: true}, nil
	}
	s.logger.Info("visitor booking cancelled", "visitor_booking_id", vb.ID, "by", id.UserID)
	publish(ctx, s.events, s.clock, s.logger, queue.Event{
		Type:             queue.VisitorCancelled,
		VisitorBookingID: vb.ID,
		SpotID:           vb.SpotID,
		UserID:           id.UserID,
		Date:             model.DateKey(vb.Date),
		VisitorName:      vb.VisitorName,
		VisitorEmail:     vb.VisitorEmail,
	})
	return CancelAck{ID: vb.ID}, nil
}
