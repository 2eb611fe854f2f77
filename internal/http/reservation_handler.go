package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/scheduler"
)

const maxBodyBytes = 1 << 16

type lifecycleService interface {
	Handle(ctx context.Context, event application.Event) (application.Response, error)
	CurrentReservation(ctx context.Context, userID string) (persistence.Reservation, error)
}

type calendarRenderer interface {
	Render(res persistence.Reservation) ([]byte, error)
}

// ReservationHandler turns requests into lifecycle events.
type ReservationHandler struct {
	service   lifecycleService
	renderer  calendarRenderer
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler renders times in loc. renderer may be nil, which disables
// the iCalendar endpoint.
func NewReservationHandler(service lifecycleService, renderer calendarRenderer, loc *time.Location, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationHandler{service: service, renderer: renderer, location: loc, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// Reserve handles POST /reserve.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "Reserve", application.RequestReserve)
}

// Cancel handles POST /cancel.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "Cancel", application.RequestCancel)
}

// SelectDate handles POST /reserve/date.
func (h *ReservationHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !h.decode(w, r, "SelectDate", &req) {
		return
	}
	h.dispatch(w, r, "SelectDate", func(userID string) application.Event {
		return application.DateSelected(userID, req.Date)
	})
}

// SelectSlot handles POST /reserve/slot.
func (h *ReservationHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !h.decode(w, r, "SelectSlot", &req) {
		return
	}
	h.dispatch(w, r, "SelectSlot", func(userID string) application.Event {
		return application.SlotSelected(userID, req.Slot)
	})
}

// Calendar handles GET /reservation.ics.
func (h *ReservationHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.renderer == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusUnauthorized, errMissingUserID)
		return
	}
	logger := h.log(ctx, "Calendar")

	current, err := h.service.CurrentReservation(ctx, userID)
	if err != nil {
		if !errors.Is(err, application.ErrNotFound) {
			logger.ErrorContext(ctx, "failed to load reservation", "error", err, "error_kind", application.ErrorKind(err))
		}
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	body, err := h.renderer.Render(current)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render calendar", "error", err)
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reservation.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.ErrorContext(ctx, "failed to write calendar", "error", err)
	}
}

func (h *ReservationHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").InfoContext(r.Context(), "failed to decode request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

func (h *ReservationHandler) dispatch(w http.ResponseWriter, r *http.Request, operation string, build func(userID string) application.Event) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusUnauthorized, errMissingUserID)
		return
	}

	resp, err := h.service.Handle(ctx, build(userID))
	if err != nil {
		h.log(ctx, operation).ErrorContext(ctx, "event failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, outcomeStatus(resp.Outcome), h.toEventResponse(resp))
}

// outcomeStatus maps lifecycle outcomes onto HTTP status codes.
func outcomeStatus(outcome application.Outcome) int {
	switch outcome {
	case application.OutcomeOK, application.OutcomeCancelled, application.OutcomeNothingToCancel, application.OutcomeNoSlotsAvailable:
		return http.StatusOK
	case application.OutcomeInvalid, application.OutcomeOutOfHorizon:
		return http.StatusUnprocessableEntity
	case application.OutcomeAlreadyReserved, application.OutcomeSlotTaken:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *ReservationHandler) toEventResponse(resp application.Response) eventResponse {
	out := eventResponse{
		Outcome: string(resp.Outcome),
		Message: resp.Message,
	}
	for _, d := range resp.Dates {
		out.Dates = append(out.Dates, d.In(h.location).Format(scheduler.DateLayout))
	}
	for _, slot := range resp.Slots {
		out.Slots = append(out.Slots, slot.Label())
	}
	if !resp.Date.IsZero() {
		out.Date = resp.Date.In(h.location).Format(scheduler.DateLayout)
	}
	if resp.Reservation != nil {
		dto := toReservationDTO(*resp.Reservation, h.location)
		out.Reservation = &dto
	}
	if resp.Validation.HasErrors() {
		out.Errors = resp.Validation.FieldErrors
	}
	return out
}

func toReservationDTO(r persistence.Reservation, loc *time.Location) reservationDTO {
	dto := reservationDTO{
		UserID:    r.UserID,
		StartTime: r.StartTime.In(loc).Format(time.RFC3339),
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.In(loc).Format(time.RFC3339)
	}
	return dto
}

type dateRequest struct {
	Date string `json:"date"`
}

type slotRequest struct {
	Slot string `json:"slot"`
}

type eventResponse struct {
	Outcome     string            `json:"outcome"`
	Message     string            `json:"message"`
	Dates       []string          `json:"dates,omitempty"`
	Slots       []string          `json:"slots,omitempty"`
	Date        string            `json:"date,omitempty"`
	Reservation *reservationDTO   `json:"reservation,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

type reservationDTO struct {
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	CreatedAt string `json:"created_at,omitempty"`
}
