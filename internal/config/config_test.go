package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INTAKE_SHARED_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.RefreshWorkers != 4 {
		t.Errorf("RefreshWorkers = %d, want 4", cfg.RefreshWorkers)
	}
	if cfg.IntakeTimeout != 10*time.Second {
		t.Errorf("IntakeTimeout = %v, want 10s", cfg.IntakeTimeout)
	}
}

func TestLoad_RequiresSharedSecret(t *testing.T) {
	t.Setenv("INTAKE_SHARED_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when INTAKE_SHARED_SECRET is unset")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INTAKE_SHARED_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("REFRESH_WORKERS", "8")
	t.Setenv("INTAKE_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.RefreshWorkers != 8 {
		t.Errorf("RefreshWorkers = %d, want 8", cfg.RefreshWorkers)
	}
	if cfg.IntakeTimeout != 30*time.Second {
		t.Errorf("IntakeTimeout = %v, want 30s", cfg.IntakeTimeout)
	}
}

func TestLoad_RejectsBadNumbers(t *testing.T) {
	t.Setenv("INTAKE_SHARED_SECRET", "s3cret")
	t.Setenv("REFRESH_WORKERS", "zero")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric REFRESH_WORKERS")
	}
}
