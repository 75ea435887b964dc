// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that carry them.
package queue

import "time"

// EventsQueue is the durable queue every domain event is routed to.
const EventsQueue = "parking.events"

// EventType names what happened.
type EventType string

const (
	ReservationCreated   EventType = "reservation.created"
	ReservationCancelled EventType = "reservation.cancelled"
	CessionCreated       EventType = "cession.created"
	CessionCancelled     EventType = "cession.cancelled"
	VisitorCreated       EventType = "visitor.created"
	VisitorCancelled     EventType = "visitor.cancelled"
)

// Event is published after a reservation, cession or visitor booking
// changes.  It carries enough for the notification worker to write its
// line without querying the primary database.  Only the ids relevant to
// Type are set; cession.created lists every offered day in Dates.
type Event struct {
	Type             EventType `json:"type"`
	ReservationID    uint64    `json:"reservation_id,omitempty"`
	CessionID        uint64    `json:"cession_id,omitempty"`
	VisitorBookingID uint64    `json:"visitor_booking_id,omitempty"`
	SpotID           uint64    `json:"spot_id"`
	SpotLabel        string    `json:"spot_label,omitempty"`
	UserID           uint64    `json:"user_id"`
	Date             string    `json:"date"`
	Dates            []string  `json:"dates,omitempty"`
	VisitorName      string    `json:"visitor_name,omitempty"`
	VisitorEmail     string    `json:"visitor_email,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
