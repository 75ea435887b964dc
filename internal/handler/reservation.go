package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/service"
)

type ReservationService interface {
	CreateReservation(ctx context.Context, id model.Identity, in service.CreateReservationInput) (uint64, error)
	CancelReservation(ctx context.Context, id model.Identity, reservationID uint64) (service.CancelAck, error)
	ListMyReservations(ctx context.Context, id model.Identity, from time.Time) ([]model.ReservationView, error)
}

type ReservationHandler struct {
	Svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

type createReservationReq struct {
	SpotID uint64  `json:"spot_id" validate:"required"`
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Note   *string `json:"note" validate:"omitempty,max=255"`
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return fieldError("date", "must be a date in YYYY-MM-DD format")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Svc.CreateReservation(ctx, identity(c), service.CreateReservationInput{
		SpotID: req.SpotID,
		Date:   date,
		Note:   req.Note,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"id": id})
}

// ListMine handles GET /v1/my-reservations?from=YYYY-MM-DD.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	from, err := queryDate(c, "from", false)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Svc.ListMyReservations(ctx, identity(c), from)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	rid, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ack, err := h.Svc.CancelReservation(ctx, identity(c), rid)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, ack)
}
