package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHAT_TOKEN", "token")
	t.Setenv("GUILD_STAFF_ROLE_ID", "role-staff")
	t.Setenv("GUILD_SUBMISSION_CATEGORY_ID", "cat-1")
	t.Setenv("GUILD_ANNOUNCEMENT_CHANNEL_ID", "chan-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Workers.Retention != 24*time.Hour {
		t.Errorf("expected 24h retention, got %s", cfg.Workers.Retention)
	}
	if cfg.Workers.Parallelism != 4 {
		t.Errorf("expected parallelism 4, got %d", cfg.Workers.Parallelism)
	}
	if cfg.Redis.DedupTTL != 15*time.Minute {
		t.Errorf("expected 15m dedup TTL, got %s", cfg.Redis.DedupTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CHANNEL_RETENTION", "48h")
	t.Setenv("BULK_PARALLELISM", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Workers.Retention != 48*time.Hour {
		t.Errorf("expected 48h retention, got %s", cfg.Workers.Retention)
	}
	if cfg.Workers.Parallelism != 8 {
		t.Errorf("expected parallelism 8, got %d", cfg.Workers.Parallelism)
	}
}

func TestLoadRequiresChatToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHAT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("expected error without chat token")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestLoadRejectsZeroParallelism(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BULK_PARALLELISM", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero parallelism")
	}
}
