package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsZeroConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Server.Port != "" || cfg.Redis.Addr != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9000"
relay:
  url: "ws://relay.local/ws"
  dialTimeout: "3s"
room:
  grace: "750ms"
redis:
  addr: "localhost:6379"
  db: 2
postgres:
  url: "postgres://localhost/eduquiz"
log:
  level: "debug"
  format: "pretty"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Relay.URL != "ws://relay.local/ws" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Redis.DB != 2 || cfg.Postgres.URL == "" {
		t.Fatalf("backend config lost: %+v", cfg)
	}
	if got := Duration(cfg.Relay.DialTimeout, time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
	if got := Duration(cfg.Room.Grace, time.Second); got != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", 5*time.Second); got != 5*time.Second {
		t.Fatalf("empty must fall back, got %s", got)
	}
	if got := Duration("nonsense", 5*time.Second); got != 5*time.Second {
		t.Fatalf("invalid must fall back, got %s", got)
	}
	if got := Duration("250ms", 5*time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}
