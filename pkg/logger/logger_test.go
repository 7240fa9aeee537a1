package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestNilLoggerDropsEvents(t *testing.T) {
	var l *Logger
	l.Info("ignored", String("k", "v"))
	if l.With("x") != nil {
		t.Fatalf("With on nil logger should stay nil")
	}
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := (&Logger{zl: zerolog.New(&buf)}).With("backtest")
	l.Warn("run failed",
		String("symbol", "BTC"),
		Int("trades", 3),
		Duration("took_ms", 1500*time.Microsecond),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got["component"] != "backtest" || got["symbol"] != "BTC" || got["error"] != "boom" {
		t.Fatalf("unexpected event %v", got)
	}
	if got["trades"].(float64) != 3 || got["took_ms"].(float64) != 1.5 {
		t.Fatalf("numeric fields wrong: %v", got)
	}
}
