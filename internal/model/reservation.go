package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation records one employee's claim on one spot for one day.
// Rows are never deleted; cancelling only flips the status so that the
// history is retained.
//
// Fields:
//  ID        – primary key identifier.
//  SpotID    – reserved spot.
//  UserID    – employee holding the reservation.
//  Date      – reserved day (midnight UTC civil date).
//  Status    – confirmed or cancelled.
//  Note      – optional free text.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64            // reservations.id
	SpotID    uint64            // reservations.spot_id
	UserID    uint64            // reservations.user_id
	Date      time.Time         // reservations.date
	Status    ReservationStatus // reservations.status
	Note      *string           // reservations.note (nullable)
	CreatedAt time.Time         // reservations.created_at
	UpdatedAt time.Time         // reservations.updated_at
}

// ReservationView is a reservation joined with its spot, as listed to
// the holder.
type ReservationView struct {
	ID        uint64            `json:"id"`
	SpotID    uint64            `json:"spot_id"`
	SpotLabel string            `json:"spot_label"`
	SpotType  SpotType          `json:"spot_type"`
	Date      string            `json:"date"`
	Status    ReservationStatus `json:"status"`
	Note      *string           `json:"note,omitempty"`
}
