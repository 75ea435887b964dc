package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/service"
)

type CessionService interface {
	CreateCession(ctx context.Context, id model.Identity, spotID uint64, dates []time.Time) (int, error)
	CancelCession(ctx context.Context, id model.Identity, cessionID uint64) (service.CessionCancelResult, error)
	ListMyCessions(ctx context.Context, id model.Identity, from time.Time) ([]model.Cession, error)
}

type CessionHandler struct {
	Svc CessionService
}

func NewCessionHandler(svc CessionService) *CessionHandler {
	return &CessionHandler{Svc: svc}
}

type createCessionReq struct {
	SpotID uint64   `json:"spot_id" validate:"required"`
	Dates  []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
}

// cessionView renders the date as YYYY-MM-DD instead of a timestamp.
type cessionView struct {
	ID     uint64              `json:"id"`
	SpotID uint64              `json:"spot_id"`
	Date   string              `json:"date"`
	Status model.CessionStatus `json:"status"`
}

// Create handles POST /v1/cessions.
func (h *CessionHandler) Create(c echo.Context) error {
	var req createCessionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	dates := make([]time.Time, len(req.Dates))
	for i, raw := range req.Dates {
		d, err := model.ParseDate(raw)
		if err != nil {
			return fieldError("dates", "must contain dates in YYYY-MM-DD format")
		}
		dates[i] = d
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Svc.CreateCession(ctx, identity(c), req.SpotID, dates)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"created": n})
}

// ListMine handles GET /v1/my-cessions?from=YYYY-MM-DD.
func (h *CessionHandler) ListMine(c echo.Context) error {
	from, err := queryDate(c, "from", false)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Svc.ListMyCessions(ctx, identity(c), from)
	if err != nil {
		return err
	}
	out := make([]cessionView, len(list))
	for i, cs := range list {
		out[i] = cessionView{ID: cs.ID, SpotID: cs.SpotID, Date: model.DateKey(cs.Date), Status: cs.Status}
	}
	return ok(c, http.StatusOK, out)
}

// Cancel handles DELETE /v1/cessions/:id.
func (h *CessionHandler) Cancel(c echo.Context) error {
	cid, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.CancelCession(ctx, identity(c), cid)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res)
}
