package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/notify"
	"github.com/example/court-reservations/internal/persistence"
)

type reservationLister interface {
	ListReservations(ctx context.Context) ([]persistence.Reservation, error)
}

type reservationExporter interface {
	Export(w io.Writer, format string, reservations []persistence.Reservation) error
}

// AuditHandler serves the read-only reservation export.
type AuditHandler struct {
	store     reservationLister
	exporter  reservationExporter
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewAuditHandler lists reservations from store and renders non-JSON formats with
// exporter.
func NewAuditHandler(store reservationLister, exporter reservationExporter, loc *time.Location, logger *slog.Logger) *AuditHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &AuditHandler{store: store, exporter: exporter, location: loc, responder: newResponder(base), logger: base}
}

// List handles GET /reservations.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.store == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	logger := handlerLogger(ctx, h.logger, "AuditHandler", "List", "format", format)

	reservations, err := h.store.ListReservations(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	if format == "" || format == "json" {
		payload := listResponse{Reservations: make([]reservationDTO, 0, len(reservations))}
		for _, res := range reservations {
			payload.Reservations = append(payload.Reservations, toReservationDTO(res, h.location))
		}
		h.responder.writeJSON(ctx, w, http.StatusOK, payload)
		return
	}

	if h.exporter == nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errUnsupportedFormat)
		return
	}
	var buf bytes.Buffer
	if err := h.exporter.Export(&buf, format, reservations); err != nil {
		logger.InfoContext(ctx, "export rejected", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errUnsupportedFormat)
		return
	}
	w.Header().Set("Content-Type", exportContentType(format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.ErrorContext(ctx, "failed to write export", "error", err)
	}
}

func exportContentType(format string) string {
	switch format {
	case notify.FormatCSV:
		return "text/csv; charset=utf-8"
	case notify.FormatICS:
		return "text/calendar; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

type listResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}
