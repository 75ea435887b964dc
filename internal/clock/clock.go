// Package clock abstracts "now" so that day classification always uses the
// server's notion of today and tests can pin it.
package clock

import "time"

// Clock returns the current time in the server's configured location.
type Clock interface {
	Now() time.Time
}

type realClock struct{ loc *time.Location }

// Real returns a Clock backed by time.Now, converted to loc. A nil loc
// means time.Local.
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return realClock{loc: loc}
}

func (c realClock) Now() time.Time { return time.Now().In(c.loc) }

// Fixed is a Clock frozen at a single instant. Tests use it to make "today"
// deterministic.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// Today returns the civil date of c.Now() as midnight UTC, the same
// representation used for every stored date.
func Today(c Clock) time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
