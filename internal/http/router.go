package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Pinger reports store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Reservations *ReservationHandler
	Audit        *AuditHandler
	Admin        TokenVerifier
	Health       Pinger
	Logger       *slog.Logger
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requireUser := RequireUser(cfg.Logger)

	if cfg.Reservations != nil {
		h := cfg.Reservations
		mux.Handle("/reserve", requireUser(post(h.Reserve)))
		mux.Handle("/reserve/date", requireUser(post(h.SelectDate)))
		mux.Handle("/reserve/slot", requireUser(post(h.SelectSlot)))
		mux.Handle("/cancel", requireUser(post(h.Cancel)))
		mux.Handle("/reservation.ics", requireUser(get(h.Calendar)))
	}

	if cfg.Audit != nil {
		mux.Handle("/reservations", RequireAdminToken(cfg.Admin, cfg.Logger)(get(cfg.Audit.List)))
	}

	responder := newResponder(cfg.Logger)
	mux.Handle("/healthz", get(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health.Ping(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}))

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func post(fn http.HandlerFunc) http.Handler {
	return allow(fn, http.MethodPost)
}

func get(fn http.HandlerFunc) http.Handler {
	return allow(fn, http.MethodGet)
}

func allow(fn http.HandlerFunc, method string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		fn(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

type healthResponse struct {
	Status string `json:"status"`
}
