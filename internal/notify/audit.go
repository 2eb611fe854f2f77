package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/example/court-reservations/internal/persistence"
)

const auditLayout = "2006-01-02 15:04"

// AuditLog appends one line per confirmation or cancellation to a text file.
type AuditLog struct {
	path string
	loc  *time.Location

	mu sync.Mutex
}

// NewAuditLog writes to path, rendering times in loc (UTC when nil).
func NewAuditLog(path string, loc *time.Location) (*AuditLog, error) {
	if path == "" {
		return nil, fmt.Errorf("notify: audit log path is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("notify: create audit log directory: %w", err)
		}
	}
	return &AuditLog{path: path, loc: loc}, nil
}

// Path returns the file the log appends to.
func (a *AuditLog) Path() string {
	return a.path
}

// ReservationConfirmed appends a confirmation line.
func (a *AuditLog) ReservationConfirmed(ctx context.Context, r persistence.Reservation) error {
	return a.append(ctx, AuditLine(r, a.loc, false))
}

// ReservationCancelled appends a cancellation line.
func (a *AuditLog) ReservationCancelled(ctx context.Context, r persistence.Reservation) error {
	return a.append(ctx, AuditLine(r, a.loc, true))
}

func (a *AuditLog) append(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("notify: open audit log: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("notify: write audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("notify: close audit log: %w", err)
	}
	return nil
}

// AuditLine renders r the way the audit log records it.
func AuditLine(r persistence.Reservation, loc *time.Location, cancelled bool) string {
	if loc == nil {
		loc = time.UTC
	}
	line := fmt.Sprintf("User ID: %s, Reservation Date and Time: %s", r.UserID, r.StartTime.In(loc).Format(auditLayout))
	if cancelled {
		line += ", canceled"
	}
	return line
}
