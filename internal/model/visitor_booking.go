package model

import "time"

// VisitorBookingStatus is the lifecycle state of a visitor booking.
type VisitorBookingStatus string

const (
	VisitorConfirmed VisitorBookingStatus = "confirmed"
	VisitorCancelled VisitorBookingStatus = "cancelled"
)

// VisitorBooking blocks a spot for an external guest on one day.  It
// never synchronises with reservations or cessions; availability
// queries treat it as an exclusion.
type VisitorBooking struct {
	ID               uint64               // visitor_bookings.id
	SpotID           uint64               // visitor_bookings.spot_id
	CreatedBy        uint64               // visitor_bookings.created_by
	Date             time.Time            // visitor_bookings.date
	VisitorName      string               // visitor_bookings.visitor_name
	VisitorCompany   *string              // visitor_bookings.visitor_company (nullable)
	VisitorEmail     string               // visitor_bookings.visitor_email
	Status           VisitorBookingStatus // visitor_bookings.status
	NotificationSent bool                 // visitor_bookings.notification_sent
	CreatedAt        time.Time            // visitor_bookings.created_at
}

// VisitorInfo is the guest data supplied when booking.
type VisitorInfo struct {
	Name    string
	Company *string
	Email   string
}
