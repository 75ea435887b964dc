package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/logging"
	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/queue"
	"github.com/iliyamo/parking-cession/internal/repository"
)

// Wednesday 12 March 2025, mid-morning. The 15th and 16th are a weekend.
var testNow = time.Date(2025, time.March, 12, 9, 30, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }

var testClock = clock.Fixed{T: testNow}

// memDB is an in-memory stand-in for MySQL that enforces the same
// unique indexes and cross-lane exclusion as the real schema.
type memDB struct {
	mu           sync.Mutex
	nextID       uint64
	spots        map[uint64]model.Spot
	reservations map[uint64]*model.Reservation
	cessions     map[uint64]*model.Cession
	visitors     map[uint64]*model.VisitorBooking

	readErr      error // returned by every list query when set
	syncErr      error // returned by every sync write when set
	cascadeErr   error // returned by CancelDependentReservation when set
	cessionCalls int   // number of CreateBatch calls
}

func newMemDB() *memDB {
	return &memDB{
		spots:        map[uint64]model.Spot{},
		reservations: map[uint64]*model.Reservation{},
		cessions:     map[uint64]*model.Cession{},
		visitors:     map[uint64]*model.VisitorBooking{},
	}
}

func (db *memDB) id() uint64 { db.nextID++; return db.nextID }

func (db *memDB) addSpot(label string, typ model.SpotType, owner uint64) model.Spot {
	db.mu.Lock()
	defer db.mu.Unlock()
	sp := model.Spot{ID: db.id(), Label: label, Type: typ, IsActive: true}
	if owner != 0 {
		o := owner
		sp.AssignedTo = &o
	}
	db.spots[sp.ID] = sp
	return sp
}

func (db *memDB) addReservation(spotID, userID uint64, date time.Time) *model.Reservation {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := &model.Reservation{ID: db.id(), SpotID: spotID, UserID: userID, Date: date, Status: model.ReservationConfirmed}
	db.reservations[r.ID] = r
	return r
}

func (db *memDB) addCession(spotID, userID uint64, date time.Time, status model.CessionStatus) *model.Cession {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := &model.Cession{ID: db.id(), SpotID: spotID, UserID: userID, Date: date, Status: status}
	db.cessions[c.ID] = c
	return c
}

func (db *memDB) addVisitor(spotID, createdBy uint64, date time.Time) *model.VisitorBooking {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := &model.VisitorBooking{ID: db.id(), SpotID: spotID, CreatedBy: createdBy, Date: date,
		VisitorName: "Guest", VisitorEmail: "guest@example.com", Status: model.VisitorConfirmed}
	db.visitors[v.ID] = v
	return v
}

func (db *memDB) cessionStatus(id uint64) model.CessionStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cessions[id].Status
}

func (db *memDB) reservationStatus(id uint64) model.ReservationStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reservations[id].Status
}

func (db *memDB) countCessions() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.cessions)
}

func (db *memDB) confirmedReservations() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, r := range db.reservations {
		if r.Status == model.ReservationConfirmed {
			n++
		}
	}
	return n
}

func inRange(d, from, to time.Time) bool { return !d.Before(from) && !d.After(to) }

// --- spots ---

type fakeSpots struct{ db *memDB }

func (f fakeSpots) ListActive(context.Context) ([]model.Spot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.readErr != nil {
		return nil, f.db.readErr
	}
	var out []model.Spot
	for _, sp := range f.db.spots {
		if sp.IsActive {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (f fakeSpots) GetByID(_ context.Context, id uint64) (*model.Spot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	sp, ok := f.db.spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sp, nil
}

func (f fakeSpots) GetAssignedTo(_ context.Context, userID uint64) (*model.Spot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var best *model.Spot
	for _, sp := range f.db.spots {
		if sp.Type == model.SpotManagement && sp.IsActive && sp.OwnedBy(userID) {
			if best == nil || sp.ID < best.ID {
				s := sp
				best = &s
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

// --- reservations ---

type fakeReservations struct{ db *memDB }

func (f fakeReservations) Create(_ context.Context, res *model.Reservation) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, v := range f.db.visitors {
		if v.SpotID == res.SpotID && v.Date.Equal(res.Date) && v.Status == model.VisitorConfirmed {
			return repository.ErrSpotOccupied
		}
	}
	for _, r := range f.db.reservations {
		if r.Status != model.ReservationConfirmed || !r.Date.Equal(res.Date) {
			continue
		}
		if r.SpotID == res.SpotID || r.UserID == res.UserID {
			return repository.ErrConflict
		}
	}
	if f.db.spots[res.SpotID].Type == model.SpotManagement {
		ceded := false
		for _, c := range f.db.cessions {
			if c.SpotID == res.SpotID && c.Date.Equal(res.Date) && c.Status == model.CessionAvailable {
				ceded = true
			}
		}
		if !ceded {
			return repository.ErrNotCeded
		}
	}
	cp := *res
	cp.ID = f.db.id()
	cp.Status = model.ReservationConfirmed
	f.db.reservations[cp.ID] = &cp
	res.ID = cp.ID
	res.Status = cp.Status
	return nil
}

func (f fakeReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	r, ok := f.db.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeReservations) ExistsConfirmedForUser(_ context.Context, userID uint64, date time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.reservations {
		if r.UserID == userID && r.Date.Equal(date) && r.Status == model.ReservationConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeReservations) ConfirmedForSpot(_ context.Context, spotID uint64, date time.Time) (*model.Reservation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.reservations {
		if r.SpotID == spotID && r.Date.Equal(date) && r.Status == model.ReservationConfirmed {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeReservations) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.readErr != nil {
		return nil, f.db.readErr
	}
	var out []model.Reservation
	for _, r := range f.db.reservations {
		if r.Status == model.ReservationConfirmed && inRange(r.Date, from, to) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f fakeReservations) ListViewsByUser(_ context.Context, userID uint64, from time.Time) ([]model.ReservationView, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.ReservationView
	for _, r := range f.db.reservations {
		if r.UserID != userID || r.Status != model.ReservationConfirmed || r.Date.Before(from) {
			continue
		}
		sp := f.db.spots[r.SpotID]
		out = append(out, model.ReservationView{ID: r.ID, SpotID: r.SpotID, SpotLabel: sp.Label, SpotType: sp.Type,
			Date: model.DateKey(r.Date), Status: r.Status, Note: r.Note})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f fakeReservations) Cancel(_ context.Context, id uint64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	r, ok := f.db.reservations[id]
	if !ok || r.Status != model.ReservationConfirmed {
		return false, nil
	}
	r.Status = model.ReservationCancelled
	return true, nil
}

// --- cessions ---

type fakeCessions struct{ db *memDB }

func (f fakeCessions) live(spotID uint64, date time.Time) bool {
	for _, c := range f.db.cessions {
		if c.SpotID == spotID && c.Date.Equal(date) && c.Status != model.CessionCancelled {
			return true
		}
	}
	return false
}

func (f fakeCessions) CreateBatch(_ context.Context, batch []model.Cession) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.cessionCalls++
	seen := map[string]bool{}
	for _, c := range batch {
		k := model.DateKey(c.Date)
		if seen[k] || f.live(c.SpotID, c.Date) {
			return repository.ErrConflict
		}
		seen[k] = true
	}
	for _, c := range batch {
		cp := c
		cp.ID = f.db.id()
		cp.Status = model.CessionAvailable
		f.db.cessions[cp.ID] = &cp
	}
	return nil
}

func (f fakeCessions) GetByID(_ context.Context, id uint64) (*model.Cession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.cessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeCessions) list(keep func(c *model.Cession) bool) ([]model.Cession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.readErr != nil {
		return nil, f.db.readErr
	}
	var out []model.Cession
	for _, c := range f.db.cessions {
		if c.Status != model.CessionCancelled && keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f fakeCessions) ListActiveBetween(_ context.Context, from, to time.Time) ([]model.Cession, error) {
	return f.list(func(c *model.Cession) bool { return inRange(c.Date, from, to) })
}

func (f fakeCessions) ListActiveForSpotBetween(_ context.Context, spotID uint64, from, to time.Time) ([]model.Cession, error) {
	return f.list(func(c *model.Cession) bool { return c.SpotID == spotID && inRange(c.Date, from, to) })
}

func (f fakeCessions) ListActiveByUser(_ context.Context, userID uint64, from time.Time) ([]model.Cession, error) {
	return f.list(func(c *model.Cession) bool { return c.UserID == userID && !c.Date.Before(from) })
}

func (f fakeCessions) Cancel(_ context.Context, id uint64, evict bool) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.cessions[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !evict {
		for _, r := range f.db.reservations {
			if r.SpotID == c.SpotID && r.Date.Equal(c.Date) && r.Status == model.ReservationConfirmed {
				return false, repository.ErrSpotOccupied
			}
		}
	}
	if c.Status == model.CessionCancelled {
		return false, nil
	}
	c.Status = model.CessionCancelled
	return true, nil
}

func (f fakeCessions) ListDrifted(_ context.Context, from time.Time) ([]model.DriftedCession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.DriftedCession
	for _, c := range f.db.cessions {
		if c.Status == model.CessionCancelled || c.Date.Before(from) {
			continue
		}
		has := false
		for _, r := range f.db.reservations {
			if r.SpotID == c.SpotID && r.Date.Equal(c.Date) && r.Status == model.ReservationConfirmed {
				has = true
			}
		}
		if (c.Status == model.CessionAvailable) == has {
			out = append(out, model.DriftedCession{ID: c.ID, SpotID: c.SpotID, Date: c.Date, Status: c.Status, HasReservation: has})
		}
	}
	return out, nil
}

// --- visitors ---

type fakeVisitors struct{ db *memDB }

func (f fakeVisitors) Create(_ context.Context, v *model.VisitorBooking) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.reservations {
		if r.SpotID == v.SpotID && r.Date.Equal(v.Date) && r.Status == model.ReservationConfirmed {
			return repository.ErrSpotOccupied
		}
	}
	for _, o := range f.db.visitors {
		if o.SpotID == v.SpotID && o.Date.Equal(v.Date) && o.Status == model.VisitorConfirmed {
			return repository.ErrConflict
		}
	}
	cp := *v
	cp.ID = f.db.id()
	cp.Status = model.VisitorConfirmed
	f.db.visitors[cp.ID] = &cp
	v.ID = cp.ID
	return nil
}

func (f fakeVisitors) GetByID(_ context.Context, id uint64) (*model.VisitorBooking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	v, ok := f.db.visitors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f fakeVisitors) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]model.VisitorBooking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.readErr != nil {
		return nil, f.db.readErr
	}
	var out []model.VisitorBooking
	for _, v := range f.db.visitors {
		if v.Status == model.VisitorConfirmed && inRange(v.Date, from, to) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f fakeVisitors) Cancel(_ context.Context, id uint64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	v, ok := f.db.visitors[id]
	if !ok || v.Status != model.VisitorConfirmed {
		return false, nil
	}
	v.Status = model.VisitorCancelled
	return true, nil
}

// --- sync ---

type fakeSync struct{ db *memDB }

func (f fakeSync) Transition(_ context.Context, spotID uint64, date time.Time, from, to model.CessionStatus) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.syncErr != nil {
		return false, f.db.syncErr
	}
	for _, c := range f.db.cessions {
		if c.SpotID == spotID && c.Date.Equal(date) && c.Status == from {
			c.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSync) CancelDependentReservation(_ context.Context, id uint64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.cascadeErr != nil {
		return false, f.db.cascadeErr
	}
	r, ok := f.db.reservations[id]
	if !ok || r.Status != model.ReservationConfirmed {
		return false, nil
	}
	r.Status = model.ReservationCancelled
	return true, nil
}

// --- events ---

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func newMockPublisher() *mockPublisher {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

func eventOfType(t queue.EventType) interface{} {
	return mock.MatchedBy(func(ev queue.Event) bool { return ev.Type == t })
}

// --- wiring ---

type engine struct {
	db           *memDB
	events       *mockPublisher
	availability *AvailabilityService
	reservations *ReservationService
	cessions     *CessionService
	visitors     *VisitorService
	reconciler   *Reconciler
}

func newEngine() *engine {
	db := newMemDB()
	pub := newMockPublisher()
	log := logging.Discard()
	spots, res, ces, vis, syn := fakeSpots{db}, fakeReservations{db}, fakeCessions{db}, fakeVisitors{db}, fakeSync{db}
	return &engine{
		db:           db,
		events:       pub,
		availability: NewAvailabilityService(spots, res, ces, vis, testClock, log),
		reservations: NewReservationService(spots, res, ces, syn, pub, testClock, log),
		cessions:     NewCessionService(spots, res, ces, syn, pub, testClock, log),
		visitors:     NewVisitorService(spots, vis, pub, testClock, log),
		reconciler:   NewReconciler(ces, syn, testClock, log),
	}
}

var (
	employee  = model.Identity{UserID: 100, Role: model.RoleEmployee}
	employee2 = model.Identity{UserID: 101, Role: model.RoleEmployee}
	manager   = model.Identity{UserID: 200, Role: model.RoleManagement}
	manager2  = model.Identity{UserID: 201, Role: model.RoleManagement}
	admin     = model.Identity{UserID: 300, Role: model.RoleAdmin}
	anonymous = model.Identity{}
)

var errBoom = errors.New("boom")
