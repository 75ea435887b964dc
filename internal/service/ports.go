// Package service is the availability and cession consistency engine.
// It decides what can be booked, by whom and when, and keeps
// reservations, cessions and visitor bookings mutually consistent.
// Storage, the privileged sync capability and the event broker are
// reached through the small interfaces declared here.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/queue"
)

type SpotStore interface {
	ListActive(ctx context.Context) ([]model.Spot, error)
	GetByID(ctx context.Context, id uint64) (*model.Spot, error)
	GetAssignedTo(ctx context.Context, userID uint64) (*model.Spot, error)
}

type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ExistsConfirmedForUser(ctx context.Context, userID uint64, date time.Time) (bool, error)
	ConfirmedForSpot(ctx context.Context, spotID uint64, date time.Time) (*model.Reservation, error)
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListViewsByUser(ctx context.Context, userID uint64, from time.Time) ([]model.ReservationView, error)
	Cancel(ctx context.Context, id uint64) (bool, error)
}

type CessionStore interface {
	CreateBatch(ctx context.Context, cessions []model.Cession) error
	GetByID(ctx context.Context, id uint64) (*model.Cession, error)
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]model.Cession, error)
	ListActiveForSpotBetween(ctx context.Context, spotID uint64, from, to time.Time) ([]model.Cession, error)
	ListActiveByUser(ctx context.Context, userID uint64, from time.Time) ([]model.Cession, error)
	// Cancel refuses with repository.ErrSpotOccupied while a confirmed
	// reservation holds the spot that day, unless evict is set.
	Cancel(ctx context.Context, id uint64, evict bool) (bool, error)
}

type VisitorStore interface {
	Create(ctx context.Context, v *model.VisitorBooking) error
	GetByID(ctx context.Context, id uint64) (*model.VisitorBooking, error)
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.VisitorBooking, error)
	Cancel(ctx context.Context, id uint64) (bool, error)
}

// CessionSyncer is the elevated capability that may write rows owned by
// someone other than the caller. It is deliberately limited to the two
// cross-entity writes.
type CessionSyncer interface {
	Transition(ctx context.Context, spotID uint64, date time.Time, from, to model.CessionStatus) (bool, error)
	CancelDependentReservation(ctx context.Context, reservationID uint64) (bool, error)
}

// DriftSource lists cessions whose status disagrees with the
// reservations table.
type DriftSource interface {
	ListDrifted(ctx context.Context, from time.Time) ([]model.DriftedCession, error)
}

// EventPublisher hands domain events to the broker. Publishing happens
// after the write has succeeded and its failure never undoes the write.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.Event) error { return nil }

// CancelAck reports the outcome of a cancel request. AlreadyCancelled
// is true when the target was not in a cancellable state, which is not
// an error.
type CancelAck struct {
	ID               uint64 `json:"id"`
	AlreadyCancelled bool   `json:"already_cancelled"`
}

// CessionCancelResult extends CancelAck with the cascade outcome.
type CessionCancelResult struct {
	ID                       uint64 `json:"id"`
	AlreadyCancelled         bool   `json:"already_cancelled"`
	ReservationAlsoCancelled bool   `json:"reservation_also_cancelled"`
}
