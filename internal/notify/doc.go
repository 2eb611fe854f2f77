// Package notify holds the adapters told about committed reservation changes: an
// append-only audit log, an iCalendar renderer, a structured log notifier and a
// fan-out combining them. It also formats the audit export.
package notify
