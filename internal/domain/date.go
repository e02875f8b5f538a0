package domain

import (
	"strings"
	"time"
)

// ParseDate reads a client date: YYYY-MM-DD at midnight UTC, or RFC 3339
// with any fraction, converted to UTC. dateOnly reports the first form.
func ParseDate(raw string) (t time.Time, dateOnly bool, err error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
