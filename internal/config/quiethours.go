package config

import (
	"fmt"
	"strings"
	"time"

	// Embed IANA timezone database for cross-platform support (Windows, minimal Docker images).
	_ "time/tzdata"
)

// QuietHoursDeferral is the status message recorded when a generation
// cycle is pushed back because it fired inside the quiet-hours window.
const QuietHoursDeferral = "deferred: quiet hours"

// Window is a quiet-hours interval resolved to minutes of local day.
// The start minute is inclusive, the end minute exclusive; a start after
// the end wraps past midnight (e.g. 22:00-07:00).
type Window struct {
	start int
	end   int
	loc   *time.Location
}

// Resolve parses the configured clock values and timezone into an
// evaluatable Window. Used at config load to reject broken settings early.
func (q *QuietHours) Resolve() (Window, error) {
	loc := time.UTC
	if q.Timezone != "" {
		l, err := time.LoadLocation(q.Timezone)
		if err != nil {
			return Window{}, fmt.Errorf("timezone %q: %w", q.Timezone, err)
		}
		loc = l
	}

	start, err := parseClock(q.Start)
	if err != nil {
		return Window{}, fmt.Errorf("start time: %w", err)
	}
	end, err := parseClock(q.End)
	if err != nil {
		return Window{}, fmt.Errorf("end time: %w", err)
	}

	return Window{start: start, end: end, loc: loc}, nil
}

// ShouldDefer reports whether a delivery at now falls inside quiet hours.
// Fail-open: nil or disabled receivers and unresolvable windows never
// defer, so a timezone missing from the host database cannot silently
// hold newsletters forever.
func (q *QuietHours) ShouldDefer(now time.Time) bool {
	if q == nil || !q.Enabled {
		return false
	}
	w, err := q.Resolve()
	if err != nil {
		return false
	}
	return w.Contains(now)
}

// Contains reports whether t falls inside the window in its local zone.
func (w Window) Contains(t time.Time) bool {
	local := t.In(w.loc)
	minute := local.Hour()*60 + local.Minute()

	if w.start <= w.end {
		return minute >= w.start && minute < w.end
	}
	return minute >= w.start || minute < w.end
}

// parseClock converts a clock string to minutes of day. Accepted forms:
// 24h "HH:MM" ("22:00") and 12h with am/pm suffix ("10pm", "10:30pm",
// "10:30 PM", "7am").
func parseClock(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))

	meridiem := ""
	for _, m := range []string{"am", "pm"} {
		if rest, ok := strings.CutSuffix(s, m); ok {
			s = strings.TrimSpace(rest)
			meridiem = m
			break
		}
	}

	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")

	minute := 0
	if hasMinutes {
		m, ok := clockDigits(minutePart)
		if !ok || m > 59 {
			return 0, fmt.Errorf("invalid minutes in clock value %q", raw)
		}
		minute = m
	}

	hour, ok := clockDigits(hourPart)
	if !ok {
		return 0, fmt.Errorf("invalid hour in clock value %q", raw)
	}

	switch meridiem {
	case "":
		// 24h form requires explicit minutes
		if !hasMinutes || hour > 23 {
			return 0, fmt.Errorf("invalid 24h clock value %q", raw)
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("invalid 12h clock value %q", raw)
		}
		// 12am is midnight, 12pm is noon
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	}

	return hour*60 + minute, nil
}

// clockDigits parses a 1-2 digit clock component.
func clockDigits(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
