package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should allow two")
	}
	if l.Allow("a") {
		t.Fatal("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are independent")
	}
	now = now.Add(500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("one token after half a second")
	}
	if l.Allow("a") {
		t.Fatal("bucket should be empty again")
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Hour)
	l.Prune(time.Minute)
	if len(l.m) != 0 {
		t.Fatalf("buckets left: %d", len(l.m))
	}
}
