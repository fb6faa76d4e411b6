// Package access decides whether a team's location queries are currently
// blocked by its access window. The decision is a pure function of the rule
// and the supplied clock value, which keeps it deterministic in tests.
package access

import (
	"strings"
	"time"

	"github.com/tonikorin/tracker-agent/internal/models"
)

const minutesPerDay = 1440

// Blocked reports whether a query against the given window must be refused
// at the given time. A window with no scheduling fields never blocks.
//
// The weekday mask is a string of digits 0-6 (Sunday=0), each digit naming a
// day on which access is allowed. A window whose start minute is later than
// its end minute wraps midnight; a wrapped window that started yesterday
// also honors yesterday's day mask.
func Blocked(w models.AccessWindow, now time.Time) bool {
	if w.IsZero() {
		return false
	}

	if w.StartDate != 0 {
		notBefore := time.UnixMilli(w.StartDate).Add(time.Duration(w.StartMinute) * time.Minute)
		if now.Before(notBefore) {
			return true
		}
	}
	if w.EndDate != 0 {
		notAfter := time.UnixMilli(w.EndDate).Add(time.Duration(w.EndMinute) * time.Minute)
		if now.After(notAfter) {
			return true
		}
	}

	if w.Repeat == "" {
		return false
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	today := int(now.Weekday()) // Sunday=0, matching the mask digits

	start, end := w.StartMinute, w.EndMinute
	if start == 0 && end == 0 {
		end = minutesPerDay // whole-day window
	}

	todayAllowed := dayAllowed(w.Repeat, today)

	if start <= end {
		if !todayAllowed {
			return true
		}
		return nowMinutes < start || nowMinutes > end
	}

	// Window wraps midnight: [start, 1440) belongs to the mask day, [0, end]
	// carries over from the previous day.
	switch {
	case nowMinutes >= start:
		return !todayAllowed
	case nowMinutes <= end:
		return !dayAllowed(w.Repeat, (today+6)%7)
	default:
		return true
	}
}

func dayAllowed(mask string, day int) bool {
	return strings.ContainsRune(mask, rune('0'+day))
}
