package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDate is returned when a calendar date is missing or malformed.
	ErrInvalidDate = errors.New("scheduler: invalid date")
	// ErrInvalidSlot is returned when a slot label is malformed or outside operating hours.
	ErrInvalidSlot = errors.New("scheduler: invalid slot")
)

const (
	// DefaultOpenHour is the local hour of the first bookable slot.
	DefaultOpenHour = 6
	// DefaultLastHour is the local hour of the last bookable slot (inclusive).
	DefaultLastHour = 21

	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// SlotLayout is the wire format for slot start times.
	SlotLayout = "15:04"
)

// Slot is a one hour interval starting at the top of a local hour.
type Slot struct {
	Start time.Time
	Hour  int
}

// Label renders the slot start as HH:MM in the slot's own zone.
func (s Slot) Label() string {
	return s.Start.Format(SlotLayout)
}

// Calendar derives candidate slots from fixed daily operating hours in one zone.
type Calendar struct {
	loc      *time.Location
	openHour int
	lastHour int
}

// NewCalendar validates the operating window. A nil location means UTC.
func NewCalendar(loc *time.Location, openHour, lastHour int) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	if openHour < 0 || lastHour > 23 || openHour > lastHour {
		return nil, fmt.Errorf("scheduler: invalid operating hours %d-%d", openHour, lastHour)
	}
	return &Calendar{loc: loc, openHour: openHour, lastHour: lastHour}, nil
}

// Location returns the court's local zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// OpenHour returns the first bookable local hour.
func (c *Calendar) OpenHour() int {
	return c.openHour
}

// LastHour returns the last bookable local hour.
func (c *Calendar) LastHour() int {
	return c.lastHour
}

// Today returns local midnight of the day containing now.
func (c *Calendar) Today(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// Day returns local midnight of the calendar day named by date's own fields, shifted
// by offset days.
func (c *Calendar) Day(date time.Time, offset int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, c.loc)
}

// CandidateSlots lists the slots of the calendar day named by date's year, month and
// day, in chronological order. Local hours skipped by a DST transition are omitted.
func (c *Calendar) CandidateSlots(date time.Time) ([]Slot, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	y, m, d := date.Date()
	slots := make([]Slot, 0, c.lastHour-c.openHour+1)
	for hour := c.openHour; hour <= c.lastHour; hour++ {
		start := time.Date(y, m, d, hour, 0, 0, 0, c.loc)
		if start.Hour() != hour {
			continue
		}
		slots = append(slots, Slot{Start: start, Hour: hour})
	}
	return slots, nil
}

// SlotAt returns the slot starting at hour on the given calendar day.
func (c *Calendar) SlotAt(date time.Time, hour int) (Slot, error) {
	if hour < c.openHour || hour > c.lastHour {
		return Slot{}, fmt.Errorf("%w: %02d:00 is outside operating hours", ErrInvalidSlot, hour)
	}
	slots, err := c.CandidateSlots(date)
	if err != nil {
		return Slot{}, err
	}
	for _, slot := range slots {
		if slot.Hour == hour {
			return slot, nil
		}
	}
	return Slot{}, fmt.Errorf("%w: %02d:00 does not exist on %s", ErrInvalidSlot, hour, date.Format(DateLayout))
}

// ParseDate reads a YYYY-MM-DD date as local midnight.
func (c *Calendar) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	date, err := time.ParseInLocation(DateLayout, value, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, value)
	}
	return date, nil
}

// ParseSlot reads "HH:MM" (minutes must be 00) or a bare hour and checks it against
// the operating window.
func (c *Calendar) ParseSlot(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: time is required", ErrInvalidSlot)
	}

	hourPart := value
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		hourPart = value[:idx]
		if value[idx+1:] != "00" {
			return 0, fmt.Errorf("%w: %q must start on the hour", ErrInvalidSlot, value)
		}
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidSlot, value)
	}
	if hour < c.openHour || hour > c.lastHour {
		return 0, fmt.Errorf("%w: %02d:00 is outside operating hours", ErrInvalidSlot, hour)
	}
	return hour, nil
}
