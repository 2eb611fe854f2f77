package application

import (
	"time"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/scheduler"
)

// EventKind identifies a normalized inbound command.
type EventKind string

const (
	// EventRequestReserve starts a booking flow.
	EventRequestReserve EventKind = "request_reserve"
	// EventDateSelected carries a YYYY-MM-DD choice.
	EventDateSelected EventKind = "date_selected"
	// EventSlotSelected carries an HH:MM choice.
	EventSlotSelected EventKind = "slot_selected"
	// EventRequestCancel cancels the user's reservation.
	EventRequestCancel EventKind = "request_cancel"
)

// Event is a transport-independent user command.
type Event struct {
	Kind   EventKind
	UserID string
	Value  string
}

// RequestReserve builds an EventRequestReserve.
func RequestReserve(userID string) Event {
	return Event{Kind: EventRequestReserve, UserID: userID}
}

// DateSelected builds an EventDateSelected.
func DateSelected(userID, date string) Event {
	return Event{Kind: EventDateSelected, UserID: userID, Value: date}
}

// SlotSelected builds an EventSlotSelected.
func SlotSelected(userID, slot string) Event {
	return Event{Kind: EventSlotSelected, UserID: userID, Value: slot}
}

// RequestCancel builds an EventRequestCancel.
func RequestCancel(userID string) Event {
	return Event{Kind: EventRequestCancel, UserID: userID}
}

// Outcome classifies the result of handling an event.
type Outcome string

// Outcomes returned by Lifecycle.Handle.
const (
	OutcomeOK               Outcome = "ok"
	OutcomeNoSlotsAvailable Outcome = "no_slots_available"
	OutcomeOutOfHorizon     Outcome = "out_of_horizon"
	OutcomeAlreadyReserved  Outcome = "already_reserved"
	OutcomeSlotTaken        Outcome = "slot_taken"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeNothingToCancel  Outcome = "nothing_to_cancel"
	OutcomeInvalid          Outcome = "invalid"
)

// Response is what the transport renders back to the user.
type Response struct {
	Outcome Outcome
	Message string
	// Dates offered after RequestReserve, local midnights.
	Dates []time.Time
	// Slots offered after a date choice or a lost race.
	Slots []scheduler.Slot
	// Date is the calendar day Slots belong to.
	Date time.Time
	// Reservation is the confirmed, existing or cancelled reservation when relevant.
	Reservation *persistence.Reservation
	// Validation holds field errors when Outcome is OutcomeInvalid.
	Validation *ValidationError
}

// PendingSelection is the set of slots last offered to a user.
type PendingSelection struct {
	Date      time.Time
	Slots     []scheduler.Slot
	ExpiresAt time.Time
}
