package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/scheduler"
)

// DefaultHorizonDays is how many days after today remain bookable.
const DefaultHorizonDays = 7

const displayLayout = "2006-01-02 15:04"

// ReservationStore captures the persistence operations the lifecycle needs.
type ReservationStore interface {
	ReservationLister
	GetReservation(ctx context.Context, userID string) (persistence.Reservation, error)
	PutReservation(ctx context.Context, userID string, start time.Time) (persistence.Reservation, error)
	DeleteReservation(ctx context.Context, userID string) error
}

// Notifier is told about committed changes. Failures are logged by the caller and
// never undo the change.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, reservation persistence.Reservation) error
	ReservationCancelled(ctx context.Context, reservation persistence.Reservation) error
}

// LifecycleConfig wires a Lifecycle.
type LifecycleConfig struct {
	Calendar    *scheduler.Calendar
	Store       ReservationStore
	Notifier    Notifier
	Now         func() time.Time
	Buffer      time.Duration
	HorizonDays int
	PendingTTL  time.Duration
	Logger      *slog.Logger
}

// Lifecycle owns the per-user reservation state machine.
type Lifecycle struct {
	calendar    *scheduler.Calendar
	store       ReservationStore
	notifier    Notifier
	resolver    *AvailabilityResolver
	now         func() time.Time
	horizonDays int
	pending     *pendingSelections
	locks       *userLocks
	logger      *slog.Logger
}

// NewLifecycle validates cfg and applies defaults.
func NewLifecycle(cfg LifecycleConfig) (*Lifecycle, error) {
	if cfg.Calendar == nil {
		return nil, errors.New("application: lifecycle requires a calendar")
	}
	if cfg.Store == nil {
		return nil, errors.New("application: lifecycle requires a reservation store")
	}
	if cfg.HorizonDays < 0 {
		return nil, fmt.Errorf("application: horizon days must not be negative, got %d", cfg.HorizonDays)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	loc := cfg.Calendar.Location()
	source := cfg.Now
	now := func() time.Time { return source().In(loc) }

	return &Lifecycle{
		calendar:    cfg.Calendar,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		resolver:    NewAvailabilityResolver(cfg.Calendar, cfg.Store, cfg.Buffer),
		now:         now,
		horizonDays: cfg.HorizonDays,
		pending:     newPendingSelections(cfg.PendingTTL, now),
		locks:       newUserLocks(),
		logger:      defaultLogger(cfg.Logger),
	}, nil
}

func (l *Lifecycle) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, l.logger, "Lifecycle", operation, attrs...)
}

// Resolver exposes the availability resolver used by the lifecycle.
func (l *Lifecycle) Resolver() *AvailabilityResolver {
	return l.resolver
}

// Handle is the single entry point for every user command. Validation problems are
// reported through OutcomeInvalid; a non-nil error means storage failed or ctx ended
// and no state was changed by this call.
func (l *Lifecycle) Handle(ctx context.Context, event Event) (resp Response, err error) {
	if l == nil {
		return Response{}, fmt.Errorf("Lifecycle is nil")
	}

	logger := l.loggerWith(ctx, string(event.Kind), "user_id", event.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if resp.Validation != nil {
			logger.InfoContext(ctx, "event rejected", "outcome", resp.Outcome, "error", resp.Validation, "error_kind", ErrorKind(resp.Validation))
			return
		}
		logger.InfoContext(ctx, "event handled", "outcome", resp.Outcome)
	}()

	if err = ctx.Err(); err != nil {
		return Response{}, err
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return invalid(fieldError("user_id", "user identity is required"), "Could not identify you. Please try again."), nil
	}

	unlock, err := l.locks.Lock(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	defer unlock()

	now := l.now()
	switch event.Kind {
	case EventRequestReserve:
		return l.reserve(ctx, logger, userID, now)
	case EventDateSelected:
		return l.selectDate(ctx, userID, event.Value, now)
	case EventSlotSelected:
		return l.selectSlot(ctx, logger, userID, event.Value, now)
	case EventRequestCancel:
		return l.cancel(ctx, logger, userID, now)
	default:
		return invalid(fieldError("event", fmt.Sprintf("unknown event %q", event.Kind)), "Unknown command."), nil
	}
}

// CurrentReservation returns the user's live reservation, or ErrNotFound.
func (l *Lifecycle) CurrentReservation(ctx context.Context, userID string) (persistence.Reservation, error) {
	existing, err := l.store.GetReservation(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Reservation{}, ErrNotFound
	}
	if err != nil {
		return persistence.Reservation{}, err
	}
	if !existing.LiveAt(l.now()) {
		return persistence.Reservation{}, ErrNotFound
	}
	return existing, nil
}

// PendingSelection returns the slots currently offered to the user.
func (l *Lifecycle) PendingSelection(userID string) (PendingSelection, bool) {
	return l.pending.Get(userID)
}

// PurgeExpiredSelections drops pending selections past their TTL.
func (l *Lifecycle) PurgeExpiredSelections() int {
	return l.pending.Purge()
}

func (l *Lifecycle) reserve(ctx context.Context, logger *slog.Logger, userID string, now time.Time) (Response, error) {
	existing, found, err := l.lookup(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if found && existing.LiveAt(now) {
		return l.alreadyReserved(existing), nil
	}
	if found {
		if err := l.store.DeleteReservation(ctx, userID); err != nil {
			return Response{}, fmt.Errorf("delete past reservation: %w", err)
		}
		logger.DebugContext(ctx, "past reservation removed", "start_time", existing.StartTime)
	}
	l.pending.Discard(userID)

	today := l.calendar.Today(now)
	dates := make([]time.Time, 0, l.horizonDays+1)
	for offset := 0; offset <= l.horizonDays; offset++ {
		dates = append(dates, l.calendar.Day(today, offset))
	}
	return Response{
		Outcome: OutcomeOK,
		Message: "Please select the date you want to play:",
		Dates:   dates,
	}, nil
}

func (l *Lifecycle) selectDate(ctx context.Context, userID, value string, now time.Time) (Response, error) {
	existing, found, err := l.lookup(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if found && existing.LiveAt(now) {
		return l.alreadyReserved(existing), nil
	}

	date, err := l.calendar.ParseDate(value)
	if err != nil {
		return invalid(fieldError("date", "must be a date in YYYY-MM-DD format"), "Please choose a date in YYYY-MM-DD format."), nil
	}

	today := l.calendar.Today(now)
	if date.Before(today) || date.After(l.calendar.Day(today, l.horizonDays)) {
		return Response{
			Outcome: OutcomeOutOfHorizon,
			Message: fmt.Sprintf("Sorry, you can only reserve a time within the next %d days.", l.horizonDays),
			Date:    date,
		}, nil
	}

	slots, err := l.resolver.Available(ctx, date, now)
	if err != nil {
		return Response{}, err
	}
	label := date.Format(scheduler.DateLayout)
	if len(slots) == 0 {
		l.pending.Discard(userID)
		return Response{
			Outcome: OutcomeNoSlotsAvailable,
			Message: fmt.Sprintf("Sorry, no available time slots for %s.", label),
			Date:    date,
		}, nil
	}

	l.pending.Store(userID, date, slots)
	return Response{
		Outcome: OutcomeOK,
		Message: fmt.Sprintf("Available time slots for %s:", label),
		Slots:   slots,
		Date:    date,
	}, nil
}

func (l *Lifecycle) selectSlot(ctx context.Context, logger *slog.Logger, userID, value string, now time.Time) (Response, error) {
	hour, err := l.calendar.ParseSlot(value)
	if err != nil {
		return invalid(fieldError("slot", "must be an offered HH:00 time"), "Please choose one of the offered times."), nil
	}

	selection, ok := l.pending.Get(userID)
	if !ok {
		return invalid(fieldError("date", "no date selected"), "Please use /reserve and choose a date first."), nil
	}
	slot, ok := scheduler.Contains(selection.Slots, hour)
	if !ok {
		return invalid(fieldError("slot", "not among the offered times"), "Please choose one of the offered times."), nil
	}
	if slot.Start.Before(now.Add(l.resolver.Buffer())) {
		l.pending.Remove(userID, hour)
		return invalid(fieldError("slot", "starts too soon"), "You cannot reserve a time in the past."), nil
	}

	stored, err := l.store.PutReservation(ctx, userID, slot.Start)
	switch {
	case errors.Is(err, persistence.ErrSlotTaken):
		return l.slotTaken(ctx, logger, userID, selection, hour, now), nil
	case errors.Is(err, persistence.ErrActiveReservation):
		l.pending.Discard(userID)
		existing, found, lookupErr := l.lookup(ctx, userID)
		if lookupErr != nil || !found {
			return Response{Outcome: OutcomeAlreadyReserved, Message: "You already have a reservation."}, nil
		}
		return l.alreadyReserved(existing), nil
	case err != nil:
		return Response{}, fmt.Errorf("store reservation: %w", err)
	}

	l.pending.Discard(userID)
	if notifyErr := l.notifier.ReservationConfirmed(ctx, stored); notifyErr != nil {
		logger.WarnContext(ctx, "confirmation notification failed", "error", notifyErr, "error_kind", ErrorKind(notifyErr))
	}
	return Response{
		Outcome:     OutcomeOK,
		Message:     fmt.Sprintf("Your reservation for %s is confirmed.", l.display(stored.StartTime)),
		Date:        selection.Date,
		Reservation: &stored,
	}, nil
}

// slotTaken refreshes the user's offer after losing a race. A refresh failure falls
// back to the old offer minus the lost hour.
func (l *Lifecycle) slotTaken(ctx context.Context, logger *slog.Logger, userID string, selection PendingSelection, hour int, now time.Time) Response {
	slots, err := l.resolver.Available(ctx, selection.Date, now)
	if err != nil {
		logger.WarnContext(ctx, "refreshing offered slots failed", "error", err, "error_kind", ErrorKind(err))
		slots = scheduler.StartingFrom(scheduler.Without(selection.Slots, hour), now.Add(l.resolver.Buffer()))
	}
	resp := Response{Outcome: OutcomeSlotTaken, Date: selection.Date}
	if len(slots) == 0 {
		l.pending.Discard(userID)
		resp.Message = fmt.Sprintf("Sorry, that time was just taken and no other slots are left for %s.", selection.Date.Format(scheduler.DateLayout))
		return resp
	}
	l.pending.Store(userID, selection.Date, slots)
	resp.Slots = slots
	resp.Message = "Sorry, that time was just taken. Please choose another:"
	return resp
}

func (l *Lifecycle) cancel(ctx context.Context, logger *slog.Logger, userID string, now time.Time) (Response, error) {
	existing, found, err := l.lookup(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	nothing := Response{Outcome: OutcomeNothingToCancel, Message: "You don't have any reservation to cancel."}
	if !found {
		return nothing, nil
	}
	if err := l.store.DeleteReservation(ctx, userID); err != nil {
		return Response{}, fmt.Errorf("delete reservation: %w", err)
	}
	if !existing.LiveAt(now) {
		logger.DebugContext(ctx, "past reservation removed", "start_time", existing.StartTime)
		return nothing, nil
	}

	l.pending.Discard(userID)
	if notifyErr := l.notifier.ReservationCancelled(ctx, existing); notifyErr != nil {
		logger.WarnContext(ctx, "cancellation notification failed", "error", notifyErr, "error_kind", ErrorKind(notifyErr))
	}
	return Response{
		Outcome:     OutcomeCancelled,
		Message:     "Your reservation has been canceled.",
		Reservation: &existing,
	}, nil
}

func (l *Lifecycle) lookup(ctx context.Context, userID string) (persistence.Reservation, bool, error) {
	existing, err := l.store.GetReservation(ctx, userID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return persistence.Reservation{}, false, nil
	case err != nil:
		return persistence.Reservation{}, false, fmt.Errorf("get reservation: %w", err)
	}
	return existing, true, nil
}

func (l *Lifecycle) alreadyReserved(existing persistence.Reservation) Response {
	return Response{
		Outcome:     OutcomeAlreadyReserved,
		Message:     fmt.Sprintf("You already have a reservation on %s. You can't make a new reservation until this one is past.", l.display(existing.StartTime)),
		Reservation: &existing,
	}
}

func (l *Lifecycle) display(t time.Time) string {
	return t.In(l.calendar.Location()).Format(displayLayout)
}

func invalid(v *ValidationError, message string) Response {
	return Response{Outcome: OutcomeInvalid, Message: message, Validation: v}
}

type noopNotifier struct{}

func (noopNotifier) ReservationConfirmed(context.Context, persistence.Reservation) error { return nil }
func (noopNotifier) ReservationCancelled(context.Context, persistence.Reservation) error { return nil }
