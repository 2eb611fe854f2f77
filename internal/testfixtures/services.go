package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/memory"
	"github.com/example/court-reservations/internal/scheduler"
)

// Engine bundles a Lifecycle with the collaborators tests want to inspect.
type Engine struct {
	Lifecycle *application.Lifecycle
	Calendar  *scheduler.Calendar
	Clock     *Clock
	Store     application.ReservationStore
	Notifier  *RecordingNotifier
}

// EngineOption configures NewEngine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	clock       *Clock
	timezone    string
	openHour    int
	lastHour    int
	buffer      time.Duration
	horizonDays int
	pendingTTL  time.Duration
	store       func(tb testing.TB, now func() time.Time) application.ReservationStore
	notifier    application.Notifier
	logger      *slog.Logger
}

// WithEngineClock overrides the clock.
func WithEngineClock(clock *Clock) EngineOption {
	return func(c *engineConfig) {
		c.clock = clock
	}
}

// WithEngineStore overrides the reservation store factory. The default is an
// in-memory store.
func WithEngineStore(factory func(tb testing.TB, now func() time.Time) application.ReservationStore) EngineOption {
	return func(c *engineConfig) {
		c.store = factory
	}
}

// WithEngineSQLite backs the engine with a migrated temporary SQLite database.
func WithEngineSQLite() EngineOption {
	return WithEngineStore(func(tb testing.TB, now func() time.Time) application.ReservationStore {
		return NewSQLiteHarness(tb, now).Storage
	})
}

// WithEngineNotifier replaces the recording notifier.
func WithEngineNotifier(notifier application.Notifier) EngineOption {
	return func(c *engineConfig) {
		c.notifier = notifier
	}
}

// WithEnginePendingTTL overrides how long offered slots stay selectable.
func WithEnginePendingTTL(ttl time.Duration) EngineOption {
	return func(c *engineConfig) {
		c.pendingTTL = ttl
	}
}

// WithEngineLogger overrides the logger (discarded by default).
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// NewEngine builds a Lifecycle with the production defaults: Asia/Nicosia,
// slots 06:00-21:00, a 5 minute buffer and a 7 day horizon.
func NewEngine(tb testing.TB, opts ...EngineOption) *Engine {
	tb.Helper()

	cfg := engineConfig{
		timezone:    scheduler.DefaultTimezone,
		openHour:    scheduler.DefaultOpenHour,
		lastHour:    scheduler.DefaultLastHour,
		buffer:      application.DefaultBookingBuffer,
		horizonDays: application.DefaultHorizonDays,
		pendingTTL:  application.DefaultPendingTTL,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock(ReservationReferenceTime())
	}

	loc, err := scheduler.LoadLocation(cfg.timezone)
	if err != nil {
		tb.Fatalf("load timezone: %v", err)
	}
	calendar, err := scheduler.NewCalendar(loc, cfg.openHour, cfg.lastHour)
	if err != nil {
		tb.Fatalf("build calendar: %v", err)
	}

	var store application.ReservationStore
	if cfg.store != nil {
		store = cfg.store(tb, cfg.clock.NowFunc())
	} else {
		store = memory.Open(cfg.clock.NowFunc())
	}

	recorder := &RecordingNotifier{}
	notifier := cfg.notifier
	if notifier == nil {
		notifier = recorder
	}

	lifecycle, err := application.NewLifecycle(application.LifecycleConfig{
		Calendar:    calendar,
		Store:       store,
		Notifier:    notifier,
		Now:         cfg.clock.NowFunc(),
		Buffer:      cfg.buffer,
		HorizonDays: cfg.horizonDays,
		PendingTTL:  cfg.pendingTTL,
		Logger:      cfg.logger,
	})
	if err != nil {
		tb.Fatalf("build lifecycle: %v", err)
	}

	return &Engine{
		Lifecycle: lifecycle,
		Calendar:  calendar,
		Clock:     cfg.clock,
		Store:     store,
		Notifier:  recorder,
	}
}

// Handle forwards to the lifecycle, failing the test on error.
func (e *Engine) Handle(tb testing.TB, event application.Event) application.Response {
	tb.Helper()
	resp, err := e.Lifecycle.Handle(context.Background(), event)
	if err != nil {
		tb.Fatalf("handle %s for %s: %v", event.Kind, event.UserID, err)
	}
	return resp
}

// Book drives the full reserve, date, slot flow and fails unless it ends in OK.
func (e *Engine) Book(tb testing.TB, userID, date, slot string) persistence.Reservation {
	tb.Helper()
	for _, event := range []application.Event{
		application.RequestReserve(userID),
		application.DateSelected(userID, date),
		application.SlotSelected(userID, slot),
	} {
		resp := e.Handle(tb, event)
		if resp.Outcome != application.OutcomeOK {
			tb.Fatalf("%s for %s: outcome %s (%s)", event.Kind, userID, resp.Outcome, resp.Message)
		}
		if resp.Reservation != nil {
			return *resp.Reservation
		}
	}
	tb.Fatalf("booking for %s returned no reservation", userID)
	return persistence.Reservation{}
}

// RecordingNotifier captures notifications and can be told to fail.
type RecordingNotifier struct {
	mu        sync.Mutex
	confirmed []persistence.Reservation
	cancelled []persistence.Reservation
	Err       error
}

// ReservationConfirmed records the reservation.
func (n *RecordingNotifier) ReservationConfirmed(_ context.Context, r persistence.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, r)
	return n.Err
}

// ReservationCancelled records the reservation.
func (n *RecordingNotifier) ReservationCancelled(_ context.Context, r persistence.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, r)
	return n.Err
}

// Confirmed returns a copy of the recorded confirmations.
func (n *RecordingNotifier) Confirmed() []persistence.Reservation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]persistence.Reservation(nil), n.confirmed...)
}

// Cancelled returns a copy of the recorded cancellations.
func (n *RecordingNotifier) Cancelled() []persistence.Reservation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]persistence.Reservation(nil), n.cancelled...)
}
