// Package repository holds the MySQL data access layer.  The sentinel
// values below let the service layer tell failure scenarios apart
// without inspecting driver errors: ErrNotFound for missing rows,
// ErrConflict for unique-key violations, ErrSpotOccupied when a
// different kind of booking already claims a spot for the day and
// ErrNotCeded when a management spot is not on offer.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by primary key or by a
// natural key yields no rows.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates one of the unique
// indexes (one reservation per person per day, one per spot per day,
// one live cession per spot per day, one visitor booking per spot per
// day).
var ErrConflict = errors.New("conflict")

// ErrSpotOccupied is returned when the spot is already claimed for the
// day by the other booking lane (a reservation blocks visitor bookings
// and vice versa).
var ErrSpotOccupied = errors.New("spot occupied")

// ErrNotCeded is returned when a management spot has no available
// cession for the requested day.
var ErrNotCeded = errors.New("spot not ceded")

// ErrInvalidTransition is returned by CessionSync for any status flip
// other than available <-> reserved.
var ErrInvalidTransition = errors.New("invalid cession transition")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL unique-key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
