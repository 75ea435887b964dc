package model

// AvailabilityTag explains why a spot is bookable.
type AvailabilityTag string

const (
	TagFree  AvailabilityTag = "free"
	TagCeded AvailabilityTag = "ceded"
)

// BookableSpot is one entry of the booking picker.
type BookableSpot struct {
	SpotID    uint64          `json:"spot_id"`
	Label     string          `json:"label"`
	Type      SpotType        `json:"type"`
	Tag       AvailabilityTag `json:"tag"`
	CessionID *uint64         `json:"cession_id,omitempty"`
}

// DayStatus is the coarse per-day classification used by the calendar.
// Employee and management projections use disjoint subsets, apart from
// weekend and past.
type DayStatus string

const (
	DayWeekend DayStatus = "weekend"
	DayPast    DayStatus = "past"

	// employee projection
	DayReserved DayStatus = "reserved"
	DayNone     DayStatus = "none"
	DayFew      DayStatus = "few"
	DayPlenty   DayStatus = "plenty"

	// management projection
	DayInUse      DayStatus = "in-use"
	DayCanCede    DayStatus = "can-cede"
	DayCededFree  DayStatus = "ceded-free"
	DayCededTaken DayStatus = "ceded-taken"
)

// DayProjection is one calendar cell.
type DayProjection struct {
	Date           string    `json:"date"`
	Status         DayStatus `json:"status"`
	TotalAvailable *int      `json:"total_available,omitempty"`
	ReservationID  *uint64   `json:"reservation_id,omitempty"`
	SpotLabel      string    `json:"spot_label,omitempty"`
	CessionID      *uint64   `json:"cession_id,omitempty"`
}

// MonthProjection is the calendar for one month as seen by one role.
type MonthProjection struct {
	Month  string          `json:"month"`
	Role   Role            `json:"role"`
	SpotID *uint64         `json:"spot_id,omitempty"`
	Days   []DayProjection `json:"days"`
}
