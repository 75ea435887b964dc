package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/model"
)

// AvailabilityService is what the picker and calendar endpoints need.
type AvailabilityService interface {
	ListBookableSpots(ctx context.Context, date time.Time) ([]model.BookableSpot, error)
	ProjectMonth(ctx context.Context, id model.Identity, monthStart time.Time) (*model.MonthProjection, error)
}

type AvailabilityHandler struct {
	Svc AvailabilityService
}

func NewAvailabilityHandler(svc AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{Svc: svc}
}

// BookableSpots handles GET /v1/spots/bookable?date=YYYY-MM-DD.
func (h *AvailabilityHandler) BookableSpots(c echo.Context) error {
	date, err := queryDate(c, "date", true)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	spots, err := h.Svc.ListBookableSpots(ctx, date)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, spots)
}

// Calendar handles GET /v1/calendar?month=YYYY-MM.
func (h *AvailabilityHandler) Calendar(c echo.Context) error {
	raw := c.QueryParam("month")
	if raw == "" {
		return fieldError("month", "is required")
	}
	month, err := time.Parse("2006-01", raw)
	if err != nil {
		return fieldError("month", "must be a month in YYYY-MM format")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	proj, err := h.Svc.ProjectMonth(ctx, identity(c), month)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, proj)
}
