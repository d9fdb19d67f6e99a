package engine

import (
	"fmt"
	"time"
)

// parseClockMinutes converts "HH:MM" to minutes after midnight.
func parseClockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// marketOpen reports whether trading is allowed at now. Test mode
// bypasses the gate entirely.
func (e *Engine) marketOpen(now time.Time) bool {
	if e.cfg.TestMode {
		return true
	}

	if !e.cfg.IgnoreWeekends {
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}

	mins := now.Hour()*60 + now.Minute()
	return mins >= e.marketOpenMins && mins < e.marketCloseMins
}
