package model

// SpotType classifies a physical parking space.
type SpotType string

const (
	SpotStandard   SpotType = "standard"
	SpotManagement SpotType = "management"
	SpotVisitor    SpotType = "visitor"
	SpotDisabled   SpotType = "disabled"
)

// Valid reports whether t is one of the known spot types.
func (t SpotType) Valid() bool {
	switch t {
	case SpotStandard, SpotManagement, SpotVisitor, SpotDisabled:
		return true
	}
	return false
}

// Spot represents a row in the `spots` table.  Spots are created and
// edited by administrators outside this service; the engine only reads
// them.
//
// Fields:
//  ID         – primary key identifier.
//  Label      – unique human label, at most 20 characters.
//  Type       – standard, management, visitor or disabled.
//  AssignedTo – owning manager; only meaningful for management spots.
//  IsActive   – inactive spots are never bookable.
type Spot struct {
	ID         uint64   // spots.id
	Label      string   // spots.label
	Type       SpotType // spots.type
	AssignedTo *uint64  // spots.assigned_to (nullable)
	IsActive   bool     // spots.is_active
}

// OwnedBy reports whether the spot is assigned to userID.
func (s Spot) OwnedBy(userID uint64) bool {
	return s.AssignedTo != nil && *s.AssignedTo == userID
}
