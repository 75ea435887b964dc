package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/service"
)

type VisitorService interface {
	CreateVisitorBooking(ctx context.Context, id model.Identity, in service.CreateVisitorBookingInput) (uint64, error)
	CancelVisitorBooking(ctx context.Context, id model.Identity, bookingID uint64) (service.CancelAck, error)
}

type VisitorHandler struct {
	Svc VisitorService
}

func NewVisitorHandler(svc VisitorService) *VisitorHandler {
	return &VisitorHandler{Svc: svc}
}

// Guest fields are trimmed and checked by the visitor service.
type createVisitorReq struct {
	SpotID         uint64  `json:"spot_id" validate:"required"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	VisitorName    string  `json:"visitor_name"`
	VisitorCompany *string `json:"visitor_company"`
	VisitorEmail   string  `json:"visitor_email"`
}

// Create handles POST /v1/visitor-bookings.
func (h *VisitorHandler) Create(c echo.Context) error {
	var req createVisitorReq
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return fieldError("date", "must be a date in YYYY-MM-DD format")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Svc.CreateVisitorBooking(ctx, identity(c), service.CreateVisitorBookingInput{
		SpotID: req.SpotID,
		Date:   date,
		Visitor: model.VisitorInfo{
			Name:    req.VisitorName,
			Company: req.VisitorCompany,
			Email:   req.VisitorEmail,
		},
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"id": id})
}

// Cancel handles DELETE /v1/visitor-bookings/:id.
func (h *VisitorHandler) Cancel(c echo.Context) error {
	vid, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ack, err := h.Svc.CancelVisitorBooking(ctx, identity(c), vid)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, ack)
}
