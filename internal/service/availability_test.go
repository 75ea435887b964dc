package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-cession/internal/model"
)

func dayStatus(t *testing.T, p *model.MonthProjection, d int) model.DayProjection {
	t.Helper()
	key := model.DateKey(day(d))
	for _, dp := range p.Days {
		if dp.Date == key {
			return dp
		}
	}
	t.Fatalf("day %s missing from projection", key)
	return model.DayProjection{}
}

func TestListBookableSpots_FiveStandardFourReserved(t *testing.T) {
	e := newEngine()
	tomorrow := day(13)
	var spots []model.Spot
	for _, l := range []string{"A1", "A2", "A3", "A4", "A5"} {
		spots = append(spots, e.db.addSpot(l, model.SpotStandard, 0))
	}
	for i := 0; i < 4; i++ {
		e.db.addReservation(spots[i].ID, uint64(500+i), tomorrow)
	}

	got, err := e.availability.ListBookableSpots(context.Background(), tomorrow)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A5", got[0].Label)
	assert.Equal(t, model.TagFree, got[0].Tag)
	assert.Nil(t, got[0].CessionID)

	proj, err := e.availability.ProjectMonth(context.Background(), employee, day(1))
	require.NoError(t, err)
	cell := dayStatus(t, proj, 13)
	assert.Equal(t, model.DayFew, cell.Status)
	require.NotNil(t, cell.TotalAvailable)
	assert.Equal(t, 1, *cell.TotalAvailable)
}

func TestListBookableSpots_ManagementAndVisitorRules(t *testing.T) {
	e := newEngine()
	d := day(14)
	free := e.db.addSpot("M1", model.SpotManagement, manager.UserID)
	taken := e.db.addSpot("M2", model.SpotManagement, manager2.UserID)
	e.db.addSpot("M3", model.SpotManagement, 999) // no cession: held by owner
	visitorSpot := e.db.addSpot("V1", model.SpotVisitor, 0)
	guestSpot := e.db.addSpot("B1", model.SpotDisabled, 0)

	c := e.db.addCession(free.ID, manager.UserID, d, model.CessionAvailable)
	e.db.addCession(taken.ID, manager2.UserID, d, model.CessionReserved)
	e.db.addReservation(taken.ID, employee.UserID, d)
	e.db.addVisitor(guestSpot.ID, employee2.UserID, d)

	got, err := e.availability.ListBookableSpots(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "M1", got[0].Label)
	assert.Equal(t, model.TagCeded, got[0].Tag)
	require.NotNil(t, got[0].CessionID)
	assert.Equal(t, c.ID, *got[0].CessionID)

	assert.Equal(t, visitorSpot.ID, got[1].SpotID)
	assert.Equal(t, model.TagFree, got[1].Tag)
}

func TestListBookableSpots_PastDateAllowed(t *testing.T) {
	e := newEngine()
	e.db.addSpot("A1", model.SpotStandard, 0)

	got, err := e.availability.ListBookableSpots(context.Background(), day(3))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListBookableSpots_ReadFailureIsInternal(t *testing.T) {
	e := newEngine()
	e.db.addSpot("A1", model.SpotStandard, 0)
	e.db.readErr = errBoom

	got, err := e.availability.ListBookableSpots(context.Background(), day(13))
	assert.Nil(t, got)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, errBoom)
}

func TestProjectMonth_WeekendAndPastWin(t *testing.T) {
	e := newEngine()
	sp := e.db.addSpot("A1", model.SpotStandard, 0)
	e.db.addReservation(sp.ID, employee.UserID, day(15)) // Saturday
	e.db.addReservation(sp.ID, employee.UserID, day(11)) // yesterday

	proj, err := e.availability.ProjectMonth(context.Background(), employee, day(20))
	require.NoError(t, err)

	assert.Equal(t, "2025-03", proj.Month)
	assert.Len(t, proj.Days, 31)
	assert.Equal(t, model.DayWeekend, dayStatus(t, proj, 15).Status)
	assert.Equal(t, model.DayWeekend, dayStatus(t, proj, 16).Status)
	assert.Equal(t, model.DayPast, dayStatus(t, proj, 11).Status)
	assert.Equal(t, model.DayPast, dayStatus(t, proj, 3).Status)
	assert.NotEqual(t, model.DayPast, dayStatus(t, proj, 12).Status, "today is not past")
}

func TestProjectMonth_EmployeeCounts(t *testing.T) {
	e := newEngine()
	var standard []model.Spot
	for _, l := range []string{"A1", "A2", "A3", "A4"} {
		standard = append(standard, e.db.addSpot(l, model.SpotStandard, 0))
	}
	mgmt := e.db.addSpot("M1", model.SpotManagement, manager.UserID)
	e.db.addSpot("V1", model.SpotVisitor, 0)

	// 13th: 4 standard + 1 ceded -> plenty
	e.db.addCession(mgmt.ID, manager.UserID, day(13), model.CessionAvailable)
	// 14th: everything claimed -> none
	for i, sp := range standard[:3] {
		e.db.addReservation(sp.ID, uint64(600+i), day(14))
	}
	e.db.addVisitor(standard[3].ID, employee2.UserID, day(14))
	// 17th: caller holds a reservation
	mine := e.db.addReservation(standard[0].ID, employee.UserID, day(17))

	proj, err := e.availability.ProjectMonth(context.Background(), employee, day(1))
	require.NoError(t, err)

	c13 := dayStatus(t, proj, 13)
	assert.Equal(t, model.DayPlenty, c13.Status)
	assert.Equal(t, 5, *c13.TotalAvailable)

	c14 := dayStatus(t, proj, 14)
	assert.Equal(t, model.DayNone, c14.Status)
	assert.Equal(t, 0, *c14.TotalAvailable)

	c17 := dayStatus(t, proj, 17)
	assert.Equal(t, model.DayReserved, c17.Status)
	require.NotNil(t, c17.ReservationID)
	assert.Equal(t, mine.ID, *c17.ReservationID)
	assert.Equal(t, "A1", c17.SpotLabel)

	c12 := dayStatus(t, proj, 12)
	assert.Equal(t, model.DayPlenty, c12.Status)
	assert.Equal(t, 4, *c12.TotalAvailable)
}

func TestProjectMonth_Management(t *testing.T) {
	e := newEngine()
	sp := e.db.addSpot("M1", model.SpotManagement, manager.UserID)
	free := e.db.addCession(sp.ID, manager.UserID, day(13), model.CessionAvailable)
	taken := e.db.addCession(sp.ID, manager.UserID, day(14), model.CessionReserved)
	holder := e.db.addReservation(sp.ID, employee.UserID, day(14))

	proj, err := e.availability.ProjectMonth(context.Background(), manager, day(1))
	require.NoError(t, err)
	require.NotNil(t, proj.SpotID)
	assert.Equal(t, sp.ID, *proj.SpotID)
	assert.Equal(t, model.RoleManagement, proj.Role)

	assert.Equal(t, model.DayCanCede, dayStatus(t, proj, 12).Status)
	assert.Equal(t, model.DayCanCede, dayStatus(t, proj, 17).Status)

	c13 := dayStatus(t, proj, 13)
	assert.Equal(t, model.DayCededFree, c13.Status)
	assert.Equal(t, free.ID, *c13.CessionID)
	assert.Nil(t, c13.ReservationID)

	c14 := dayStatus(t, proj, 14)
	assert.Equal(t, model.DayCededTaken, c14.Status)
	assert.Equal(t, taken.ID, *c14.CessionID)
	require.NotNil(t, c14.ReservationID)
	assert.Equal(t, holder.ID, *c14.ReservationID)

	assert.Equal(t, model.DayWeekend, dayStatus(t, proj, 15).Status)
	assert.Equal(t, model.DayPast, dayStatus(t, proj, 10).Status)
}

func TestProjectMonth_AdminWithoutSpotIsInUse(t *testing.T) {
	e := newEngine()

	proj, err := e.availability.ProjectMonth(context.Background(), admin, day(1))
	require.NoError(t, err)
	assert.Nil(t, proj.SpotID)
	assert.Equal(t, model.DayInUse, dayStatus(t, proj, 13).Status)
	assert.Equal(t, model.DayWeekend, dayStatus(t, proj, 15).Status)
}

func TestProjectMonth_RequiresIdentity(t *testing.T) {
	e := newEngine()

	_, err := e.availability.ProjectMonth(context.Background(), anonymous, day(1))
	assert.Equal(t, KindUnauthorized, KindOf(err))
}
