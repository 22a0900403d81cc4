// Package status defines the authoritative scheduler status snapshot shared
// by the HTTP API, the countdown reconciler and the persistent run tracker.
package status

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp signals a missing or unparsable execution timestamp.
// Callers must fall back to a "not scheduled" display instead of doing any
// time arithmetic with a zero value.
var ErrInvalidTimestamp = errors.New("invalid or missing timestamp")

// Snapshot is a single authoritative status reading from the scheduler.
// It is immutable once produced; a later snapshot supersedes it.
type Snapshot struct {
	Active           bool    `json:"active"`
	Topic            string  `json:"topic,omitempty"`
	NextExecutionUTC *string `json:"next_execution_utc"`
	LastExecutionUTC *string `json:"last_execution_utc"`
	StatusMessage    *string `json:"status_message"`
	TimeUntilNextStr *string `json:"time_until_next_str"`
	ServerTimeUTC    string  `json:"server_time_utc,omitempty"`
}

// NextExecution parses the snapshot's next execution timestamp.
// Returns ErrInvalidTimestamp when the field is absent.
func (s *Snapshot) NextExecution() (time.Time, error) {
	if s == nil || s.NextExecutionUTC == nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return ParseTargetTime(*s.NextExecutionUTC)
}

// ParseTargetTime parses an ISO-8601 (RFC 3339) timestamp string.
// An empty or unparsable string yields ErrInvalidTimestamp so that invalid
// input short-circuits before reaching countdown arithmetic.
func ParseTargetTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return t, nil
}

// FormatRemaining decomposes a remaining duration into days, hours, minutes
// and seconds. Leading zero units are omitted, seconds are always shown.
// A zero or negative duration renders the due-now state.
func FormatRemaining(remaining time.Duration) string {
	secs := int64(remaining / time.Second)
	if secs <= 0 {
		return "due now"
	}

	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
