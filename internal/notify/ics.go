package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/example/court-reservations/internal/persistence"
)

const (
	defaultProductID = "-//courtbook//Court Reservations//EN"
	defaultSummary   = "Tennis court reservation"
)

// reservationNamespace seeds the stable event UIDs.
var reservationNamespace = uuid.MustParse("6f1c2a4e-5a43-4c7e-9f0e-1b2d3c4e5f60")

// ICSRenderer turns reservations into iCalendar documents.
type ICSRenderer struct {
	ProductID string
	Summary   string
	Location  string
	Duration  time.Duration
	now       func() time.Time
}

// NewICSRenderer builds a renderer for one-hour court bookings at place.
func NewICSRenderer(place string, now func() time.Time) *ICSRenderer {
	if now == nil {
		now = time.Now
	}
	return &ICSRenderer{
		ProductID: defaultProductID,
		Summary:   defaultSummary,
		Location:  place,
		Duration:  time.Hour,
		now:       now,
	}
}

// Render produces a single-event calendar confirming r.
func (r *ICSRenderer) Render(res persistence.Reservation) ([]byte, error) {
	if res.UserID == "" || res.StartTime.IsZero() {
		return nil, errors.New("notify: cannot render an empty reservation")
	}
	cal := r.calendar()
	r.addEvent(cal, res)
	return []byte(cal.Serialize()), nil
}

// RenderAll produces one calendar holding every reservation.
func (r *ICSRenderer) RenderAll(reservations []persistence.Reservation) ([]byte, error) {
	cal := r.calendar()
	for _, res := range reservations {
		if res.StartTime.IsZero() {
			return nil, fmt.Errorf("notify: reservation for %q has no start time", res.UserID)
		}
		r.addEvent(cal, res)
	}
	return []byte(cal.Serialize()), nil
}

func (r *ICSRenderer) calendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(r.ProductID)
	return cal
}

func (r *ICSRenderer) addEvent(cal *ical.Calendar, res persistence.Reservation) {
	duration := r.Duration
	if duration <= 0 {
		duration = time.Hour
	}
	stamp := r.now().UTC()

	event := cal.AddEvent(EventUID(res))
	event.SetDtStampTime(stamp)
	if !res.CreatedAt.IsZero() {
		event.SetCreatedTime(res.CreatedAt.UTC())
	}
	event.SetStartAt(res.StartTime.UTC())
	event.SetEndAt(res.StartTime.Add(duration).UTC())
	event.SetSummary(r.Summary)
	if strings.TrimSpace(r.Location) != "" {
		event.SetLocation(r.Location)
	}
	event.SetDescription(fmt.Sprintf("Reserved by %s", res.UserID))
}

// EventUID is stable for a given user and start time.
func EventUID(res persistence.Reservation) string {
	name := res.UserID + "|" + res.StartTime.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(reservationNamespace, []byte(name)).String() + "@courtbook"
}
