package model

import "time"

// CessionStatus is the lifecycle state of a cession.
type CessionStatus string

const (
	CessionAvailable CessionStatus = "available"
	CessionReserved  CessionStatus = "reserved"
	CessionCancelled CessionStatus = "cancelled"
)

// Cession is a manager's offer to release their assigned spot on one
// day.  While it is available anyone may book the spot; a reservation
// on the same spot and day moves it to reserved, and cancelling that
// reservation moves it back.
//
// Fields:
//  ID        – primary key identifier.
//  SpotID    – the manager's assigned spot.
//  UserID    – manager who offered the spot.
//  Date      – released day (midnight UTC civil date).
//  Status    – available, reserved or cancelled.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Cession struct {
	ID        uint64        `json:"id"`         // cessions.id
	SpotID    uint64        `json:"spot_id"`    // cessions.spot_id
	UserID    uint64        `json:"user_id"`    // cessions.user_id
	Date      time.Time     `json:"date"`       // cessions.date
	Status    CessionStatus `json:"status"`     // cessions.status
	CreatedAt time.Time     `json:"created_at"` // cessions.created_at
	UpdatedAt time.Time     `json:"updated_at"` // cessions.updated_at
}

// DriftedCession is a cession whose status disagrees with the presence
// of a confirmed reservation on the same spot and day.
type DriftedCession struct {
	ID             uint64
	SpotID         uint64
	Date           time.Time
	Status         CessionStatus
	HasReservation bool
}
