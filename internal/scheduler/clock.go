package scheduler

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the court's zone when none is configured.
const DefaultTimezone = "Asia/Nicosia"

// Clock reports the current instant converted into the court's zone.
type Clock struct {
	loc    *time.Location
	source func() time.Time
}

// NewClock wraps source (time.Now when nil) so every reading is in loc.
func NewClock(loc *time.Location, source func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	if source == nil {
		source = time.Now
	}
	return Clock{loc: loc, source: source}
}

// Now returns the current local instant.
func (c Clock) Now() time.Time {
	if c.source == nil {
		return time.Now().In(c.location())
	}
	return c.source().In(c.location())
}

// Location returns the zone readings are converted into.
func (c Clock) Location() *time.Location {
	return c.location()
}

func (c Clock) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// LoadLocation resolves an IANA zone name, defaulting to DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load timezone %q: %w", name, err)
	}
	return loc, nil
}
