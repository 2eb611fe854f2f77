package notify

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/court-reservations/internal/persistence"
)

// Export formats understood by Export.
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatICS  = "ics"
)

// Exporter writes the full reservation list in one of the export formats.
type Exporter struct {
	Location *time.Location
	Renderer *ICSRenderer
}

// Export writes reservations to w in format.
func (e Exporter) Export(w io.Writer, format string, reservations []persistence.Reservation) error {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		for _, r := range reservations {
			if _, err := fmt.Fprintln(w, AuditLine(r, loc, false)); err != nil {
				return fmt.Errorf("notify: write text export: %w", err)
			}
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"user_id", "start_time", "created_at"}); err != nil {
			return fmt.Errorf("notify: write csv header: %w", err)
		}
		for _, r := range reservations {
			record := []string{
				r.UserID,
				r.StartTime.In(loc).Format(time.RFC3339),
				r.CreatedAt.In(loc).Format(time.RFC3339),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("notify: write csv record: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatICS:
		renderer := e.Renderer
		if renderer == nil {
			renderer = NewICSRenderer("", nil)
		}
		body, err := renderer.RenderAll(reservations)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	default:
		return fmt.Errorf("notify: unknown export format %q", format)
	}
}
