package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"trivia-night-service/internal/config"
)

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\ngame:\n  id: file-game\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TRIVIA_CONFIG", path)
	t.Setenv("TRIVIA_GAME", "env-game")
	t.Setenv("TRIVIA_REDIS_ADDR", "redis:6379")

	opts := &options{}
	cmd := newRootCmdWith(opts)
	var cfg config.Config
	cmd.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(*cobra.Command, []string) error {
			var err error
			cfg, err = loadConfig(opts)
			return err
		},
	})
	cmd.SetArgs([]string{"probe", "--port", "7000"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected flag to win, got port %q", cfg.Server.Port)
	}
	if cfg.Game.ID != "env-game" || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if cfg.Game.Countdown != 3 {
		t.Fatalf("expected defaults for unset keys, got %d", cfg.Game.Countdown)
	}
}

func TestHostConfigFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.Game.RevealDelay = "4s"
	cfg.Game.WriteTimeout = "bogus"
	cfg.Game.AutoReveal = false

	hc := hostConfig(cfg)
	if hc.RevealDelay != 4*time.Second || hc.AutoReveal || hc.CountdownFrom != 3 {
		t.Fatalf("unexpected host config %+v", hc)
	}
	if hc.WriteTimeout != 5*time.Second {
		t.Fatalf("expected fallback write timeout, got %v", hc.WriteTimeout)
	}
}

func TestHashPassword(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("quizmaster\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-password"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("quizmaster")); err != nil {
		t.Fatalf("expected a hash of the password: %v", err)
	}
}
