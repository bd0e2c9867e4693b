package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAndSessionConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
auth:
  secret: "sekrit"
quiz:
  default_time_limit: "45s"
session:
  grace_period: "3s"
  retention: "15m"
  code_length: 8
  base_points: 200
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Auth.Secret != "sekrit" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	sess := cfg.SessionConfig()
	if sess.GracePeriod != 3*time.Second {
		t.Fatalf("grace period: %v", sess.GracePeriod)
	}
	if sess.Retention != 15*time.Minute {
		t.Fatalf("retention: %v", sess.Retention)
	}
	if sess.DefaultTimeLimit != 45*time.Second {
		t.Fatalf("default time limit: %v", sess.DefaultTimeLimit)
	}
	if sess.CodeLength != 8 || sess.Score.BasePoints != 200 {
		t.Fatalf("unexpected session config: %+v", sess)
	}
	// Unset knobs keep the core defaults.
	if sess.RevealHold != 5*time.Second || sess.Score.MaxTimeBonus != 100 {
		t.Fatalf("defaults not preserved: %+v", sess)
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("empty: %v", d)
	}
	if d := TTLDuration("90s", time.Minute); d != 90*time.Second {
		t.Fatalf("parsed: %v", d)
	}
	if d := TTLDuration("not-a-duration", time.Minute); d != time.Minute {
		t.Fatalf("malformed: %v", d)
	}
}
