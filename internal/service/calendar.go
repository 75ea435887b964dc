package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/repository"
)

// fewThreshold is the largest count still shown as "few".
const fewThreshold = 3

// ProjectMonth classifies every day of the month containing monthStart
// from the caller's point of view. Employees see how many spots are
// left; managers and admins see the state of their own spot's cessions.
func (s *AvailabilityService) ProjectMonth(ctx context.Context, id model.Identity, monthStart time.Time) (*model.MonthProjection, error) {
	if id.UserID == 0 {
		return nil, unauthorizedError()
	}
	first := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	today := clock.Today(s.clock)

	switch id.Role {
	case model.RoleEmployee:
		snap, err := s.load(ctx, first, last)
		if err != nil {
			return nil, fail(s.logger, "project employee month", err)
		}
		return projectEmployeeMonth(id, first, today, snap), nil
	case model.RoleManagement, model.RoleAdmin:
		spot, err := s.spots.GetAssignedTo(ctx, id.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fail(s.logger, "resolve assigned spot", err)
		}
		mv := managerView{}
		if spot != nil {
			mv.spot = spot
			if mv.cessions, err = s.cessions.ListActiveForSpotBetween(ctx, spot.ID, first, last); err != nil {
				return nil, fail(s.logger, "project management month", err)
			}
			if mv.reservations, err = s.reservations.ListConfirmedBetween(ctx, first, last); err != nil {
				return nil, fail(s.logger, "project management month", err)
			}
		}
		return projectManagementMonth(id, first, today, mv), nil
	default:
		return nil, unauthorizedError()
	}
}

// eachDay calls fn for every day of the month starting at first. Days
// that are weekends or before today are classified here so both
// projections agree on them; fn sees only the remaining working days.
func eachDay(first, today time.Time, fn func(day time.Time) model.DayProjection) []model.DayProjection {
	days := make([]model.DayProjection, 0, 31)
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		switch {
		case model.IsWeekend(d):
			days = append(days, model.DayProjection{Date: model.DateKey(d), Status: model.DayWeekend})
		case d.Before(today):
			days = append(days, model.DayProjection{Date: model.DateKey(d), Status: model.DayPast})
		default:
			p := fn(d)
			p.Date = model.DateKey(d)
			days = append(days, p)
		}
	}
	return days
}

func projectEmployeeMonth(id model.Identity, first, today time.Time, snap *snapshot) *model.MonthProjection {
	days := eachDay(first, today, func(d time.Time) model.DayProjection {
		key := model.DateKey(d)
		for _, r := range snap.reservations[key] {
			if r.UserID != id.UserID {
				continue
			}
			rid := r.ID
			return model.DayProjection{
				Status:        model.DayReserved,
				ReservationID: &rid,
				SpotLabel:     snap.spotByID[r.SpotID].Label,
			}
		}

		claimed := snap.claimed[key]
		total := 0
		for _, sp := range snap.spots {
			if (sp.Type == model.SpotStandard || sp.Type == model.SpotDisabled) && !claimed[sp.ID] {
				total++
			}
		}
		for _, c := range snap.cessions[key] {
			if _, active := snap.spotByID[c.SpotID]; !active {
				continue
			}
			if c.Status == model.CessionAvailable && !claimed[c.SpotID] {
				total++
			}
		}

		p := model.DayProjection{TotalAvailable: &total}
		switch {
		case total == 0:
			p.Status = model.DayNone
		case total <= fewThreshold:
			p.Status = model.DayFew
		default:
			p.Status = model.DayPlenty
		}
		return p
	})
	return &model.MonthProjection{Month: first.Format("2006-01"), Role: id.Role, Days: days}
}

// managerView is the data behind a management projection: the caller's
// spot (nil when none is assigned), its live cessions and the month's
// confirmed reservations.
type managerView struct {
	spot         *model.Spot
	cessions     []model.Cession
	reservations []model.Reservation
}

func projectManagementMonth(id model.Identity, first, today time.Time, mv managerView) *model.MonthProjection {
	out := &model.MonthProjection{Month: first.Format("2006-01"), Role: id.Role}

	cessionByDay := make(map[string]model.Cession, len(mv.cessions))
	for _, c := range mv.cessions {
		cessionByDay[model.DateKey(c.Date)] = c
	}
	holderByDay := make(map[string]uint64)
	if mv.spot != nil {
		spotID := mv.spot.ID
		out.SpotID = &spotID
		for _, r := range mv.reservations {
			if r.SpotID == spotID {
				holderByDay[model.DateKey(r.Date)] = r.ID
			}
		}
	}

	out.Days = eachDay(first, today, func(d time.Time) model.DayProjection {
		if mv.spot == nil {
			return model.DayProjection{Status: model.DayInUse}
		}
		key := model.DateKey(d)
		c, ok := cessionByDay[key]
		if !ok {
			return model.DayProjection{Status: model.DayCanCede, SpotLabel: mv.spot.Label}
		}
		cid := c.ID
		switch c.Status {
		case model.CessionAvailable:
			return model.DayProjection{Status: model.DayCededFree, CessionID: &cid, SpotLabel: mv.spot.Label}
		case model.CessionReserved:
			p := model.DayProjection{Status: model.DayCededTaken, CessionID: &cid, SpotLabel: mv.spot.Label}
			if rid, ok := holderByDay[key]; ok {
				p.ReservationID = &rid
			}
			return p
		default:
			return model.DayProjection{Status: model.DayInUse, CessionID: &cid}
		}
	})
	return out
}
