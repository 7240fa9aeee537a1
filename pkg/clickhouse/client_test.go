package clickhouse

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := *defaultClientConfig()
	cfg.Host = "ch.local"
	cfg.Database = "patternlab"
	cfg.Password = "p@ss"
	cfg.MaxExecTime = 90 * time.Second
	cfg.AsyncInsert = true
	cfg.WaitForAsync = true

	u, err := url.Parse(BuildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9000" || u.Path != "/patternlab" {
		t.Fatalf("unexpected dsn %s", u)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" || u.User.Username() != "default" {
		t.Fatalf("credentials not encoded: %s", u.User)
	}
	q := u.Query()
	if q.Get("max_execution_time") != "90" || q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("dial_timeout") != "5s" || q.Has("write_timeout") {
		t.Fatalf("unexpected timeouts %v", q)
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := *defaultClientConfig()
	cfg.Host = "ch.local"
	cfg.Port = 8123
	cfg.UseHTTP = true
	u, err := url.Parse(BuildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "http" || u.Port() != "8123" {
		t.Fatalf("unexpected dsn %s", u)
	}
	if u.Query().Has("async_insert") {
		t.Fatalf("async_insert should be absent")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrNoHost) {
		t.Fatalf("expected ErrNoHost, got %v", err)
	}
}
