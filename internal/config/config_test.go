package config

import (
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PAYFAST_SANDBOX", "false")
	t.Setenv("PAYFAST_VALID_IPS", " 10.0.0.0/8 , ,127.0.0.1")
	t.Setenv("RECURRENCE_WORKER_INTERVAL", "15m")
	t.Setenv("RECURRENCE_HORIZON_DAYS", "not-a-number")

	cfg := Load()

	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Fatalf("expected production env, got %q", cfg.Env)
	}
	if cfg.PayFastSandbox {
		t.Fatal("expected sandbox disabled")
	}
	if len(cfg.PayFastValidIPs) != 2 || cfg.PayFastValidIPs[0] != "10.0.0.0/8" || cfg.PayFastValidIPs[1] != "127.0.0.1" {
		t.Fatalf("unexpected ip list %v", cfg.PayFastValidIPs)
	}
	if cfg.RecurrenceWorkerInterval != 15*time.Minute {
		t.Fatalf("unexpected interval %s", cfg.RecurrenceWorkerInterval)
	}
	if cfg.RecurrenceHorizonDays != 28 {
		t.Fatalf("expected default horizon on bad input, got %d", cfg.RecurrenceHorizonDays)
	}
}

func TestParseDurationFallsBack(t *testing.T) {
	if got := parseDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}
