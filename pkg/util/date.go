package util

import (
	"strconv"
	"time"
)

var layouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime accepts RFC3339, a bare date, unix seconds or unix millis. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	// 1e11 seconds is year 5138; anything larger is millis
	if ts > 1e11 {
		return time.UnixMilli(ts).UTC(), true
	}
	return time.Unix(ts, 0).UTC(), true
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
