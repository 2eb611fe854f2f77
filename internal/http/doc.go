// Package http exposes the reservation lifecycle over JSON.
//
// Every user endpoint identifies the caller with the X-User-ID header; the value is
// opaque and passed through to the lifecycle unchanged.
//   - POST /reserve: starts a booking. Response lists the bookable `dates`.
//   - POST /reserve/date: body {"date":"YYYY-MM-DD"}. Response lists the free `slots`.
//   - POST /reserve/slot: body {"slot":"HH:MM"}. Confirms the reservation.
//   - POST /cancel: cancels the caller's live reservation.
//   - GET /reservation.ics: the caller's live reservation as an iCalendar document.
//   - GET /reservations: audit export of every stored reservation. Requires
//     `Authorization: Bearer <admin token>`; `?format=text|csv|ics` selects a non-JSON
//     rendering.
//   - GET /healthz: store liveness.
//
// Lifecycle responses share the `eventResponse` payload defined in
// reservation_handler.go. Outcomes map to status codes in outcomeStatus.
package http
