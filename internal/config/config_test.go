package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Game.Countdown != 3 || !cfg.Game.AutoReveal || cfg.Game.ID != "default" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
redis:
  addr: localhost:6379
game:
  id: friday
  autoReveal: false
  revealDelay: 3s
auth:
  jwtSecret: s3cret
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Game.ID != "friday" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Game.AutoReveal {
		t.Fatalf("expected autoReveal turned off")
	}
	if !cfg.Game.SpeedScoring || cfg.Game.DefaultTimer != 20 {
		t.Fatalf("expected untouched keys to keep defaults, got %+v", cfg.Game)
	}
	if got := TTLDuration(cfg.Game.RevealDelay, time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}
