package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-03-01")
	if !ok || !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	at := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(at.Unix(), 10))
	if !ok || got.Unix() != at.Unix() {
		t.Fatalf("unexpected unix %v", got)
	}
	got, ok = ParseTime(strconv.FormatInt(at.UnixMilli(), 10))
	if !ok || !got.Equal(at) {
		t.Fatalf("unexpected millis %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseTimeDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default for garbage")
	}
}
