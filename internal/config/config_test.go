package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.LocationStaleness != 30*time.Minute {
		t.Fatalf("expected default staleness, got %v", cfg.LocationStaleness)
	}
	if cfg.ArrivalRadiusM != 150 {
		t.Fatalf("expected default arrival radius, got %v", cfg.ArrivalRadiusM)
	}
	if cfg.NotifyMinPriority != "high" {
		t.Fatalf("expected default notify priority")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BROADCAST_THROTTLE", "10s")
	t.Setenv("ARRIVAL_DWELL", "5m")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.BroadcastThrottle != 10*time.Second {
		t.Fatalf("expected override throttle")
	}
	if cfg.ArrivalDwell != 5*time.Minute {
		t.Fatalf("expected override dwell")
	}
}
