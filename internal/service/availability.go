package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
)

// AvailabilityService answers read-only questions about which spots can
// be booked: the picker list for one day and the month calendar.
type AvailabilityService struct {
	spots        SpotStore
	reservations ReservationStore
	cessions     CessionStore
	visitors     VisitorStore
	clock        clock.Clock
	logger       *slog.Logger
}

func NewAvailabilityService(
	spots SpotStore,
	reservations ReservationStore,
	cessions CessionStore,
	visitors VisitorStore,
	clk clock.Clock,
	logger *slog.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		spots:        spots,
		reservations: reservations,
		cessions:     cessions,
		visitors:     visitors,
		clock:        clk,
		logger:       logger,
	}
}

// ListBookableSpots returns the spots a third party may book on date,
// ordered by label. Standard, disabled and visitor spots are free unless
// a reservation or visitor booking claims them; management spots appear
// only while their owner's cession for that day is available.
func (s *AvailabilityService) ListBookableSpots(ctx context.Context, date time.Time) ([]model.BookableSpot, error) {
	day := model.CivilDate(date)
	snap, err := s.load(ctx, day, day)
	if err != nil {
		return nil, fail(s.logger, "list bookable spots", err)
	}
	key := model.DateKey(day)
	claimed := snap.claimed[key]
	ceded := snap.cessionsBySpot(key)

	out := make([]model.BookableSpot, 0, len(snap.spots))
	for _, sp := range snap.spots {
		if claimed[sp.ID] {
			continue
		}
		switch sp.Type {
		case model.SpotStandard, model.SpotDisabled, model.SpotVisitor:
			out = append(out, model.BookableSpot{SpotID: sp.ID, Label: sp.Label, Type: sp.Type, Tag: model.TagFree})
		case model.SpotManagement:
			c, ok := ceded[sp.ID]
			if !ok || c.Status != model.CessionAvailable {
				continue
			}
			id := c.ID
			out = append(out, model.BookableSpot{SpotID: sp.ID, Label: sp.Label, Type: sp.Type, Tag: model.TagCeded, CessionID: &id})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// snapshot is everything the projections need for a date range, read
// up front so that classification itself is pure.
type snapshot struct {
	spots    []model.Spot
	spotByID map[uint64]model.Spot
	// date key -> confirmed reservations that day
	reservations map[string][]model.Reservation
	// date key -> live cessions that day
	cessions map[string][]model.Cession
	// date key -> spot ids held by a reservation or a visitor booking
	claimed map[string]map[uint64]bool
}

func (s *AvailabilityService) load(ctx context.Context, from, to time.Time) (*snapshot, error) {
	spots, err := s.spots.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservations.ListConfirmedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	cessions, err := s.cessions.ListActiveBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	visitors, err := s.visitors.ListConfirmedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		spots:        spots,
		spotByID:     make(map[uint64]model.Spot, len(spots)),
		reservations: make(map[string][]model.Reservation),
		cessions:     make(map[string][]model.Cession),
		claimed:      make(map[string]map[uint64]bool),
	}
	for _, sp := range spots {
		snap.spotByID[sp.ID] = sp
	}
	for _, r := range reservations {
		k := model.DateKey(r.Date)
		snap.reservations[k] = append(snap.reservations[k], r)
		snap.claim(k, r.SpotID)
	}
	for _, v := range visitors {
		snap.claim(model.DateKey(v.Date), v.SpotID)
	}
	for _, c := range cessions {
		k := model.DateKey(c.Date)
		snap.cessions[k] = append(snap.cessions[k], c)
	}
	return snap, nil
}

func (snap *snapshot) claim(key string, spotID uint64) {
	m := snap.claimed[key]
	if m == nil {
		m = make(map[uint64]bool)
		snap.claimed[key] = m
	}
	m[spotID] = true
}

func (snap *snapshot) cessionsBySpot(key string) map[uint64]model.Cession {
	out := make(map[uint64]model.Cession, len(snap.cessions[key]))
	for _, c := range snap.cessions[key] {
		out[c.SpotID] = c
	}
	return out
}
