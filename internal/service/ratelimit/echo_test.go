package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serve(e *echo.Echo) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return rec
}

func newEcho(l *Limiter) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(l))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	e := newEcho(New(0, 1))
	if rec := serve(e); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := serve(e)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_RATE_LIMITED") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestNilLimiterPassesThrough(t *testing.T) {
	e := newEcho(nil)
	for i := 0; i < 5; i++ {
		if rec := serve(e); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
}

func TestAllowSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")
	if _, ok := l.m["a"]; ok {
		t.Fatal("idle bucket should be swept")
	}
	if len(l.m) != 1 {
		t.Fatalf("buckets left: %d", len(l.m))
	}
}
