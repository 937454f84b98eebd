package config

import (
	"testing"
	"time"
)

func TestDefaultIsInternallyConsistent(t *testing.T) {
	cfg := Default()
	if cfg.Database.Name == "" {
		t.Fatal("expected a default database name")
	}
	if cfg.PollInterval <= 0 {
		t.Fatal("expected a positive default poll interval")
	}
	if !cfg.BoundaryEnabled {
		t.Fatal("expected the boundary filter to default to enabled")
	}
}

func TestApplyEnvOverridesDuration(t *testing.T) {
	t.Setenv("T_COMPLETE_H", "2")
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TComplete != 2*time.Hour {
		t.Fatalf("got %v, want 2h", cfg.TComplete)
	}
}

func TestApplyEnvOverridesFloat(t *testing.T) {
	t.Setenv("LANDING_RADIUS_NM", "25")
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LandingRadiusNM != 25 {
		t.Fatalf("got %f, want 25", cfg.LandingRadiusNM)
	}
}

func TestApplyEnvOverridesString(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Fatalf("got %q, want db.internal", cfg.Database.Host)
	}
}

func TestApplyEnvRejectsMalformedValue(t *testing.T) {
	t.Setenv("LANDING_RADIUS_NM", "not-a-number")
	cfg := Default()
	if err := cfg.applyEnv(); err == nil {
		t.Fatal("expected an error for a malformed LANDING_RADIUS_NM")
	}
}

func TestApplyEnvUnsetLeavesDefault(t *testing.T) {
	cfg := Default()
	before := cfg.Database.Host
	if err := cfg.applyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != before {
		t.Fatalf("got %q, want unchanged %q", cfg.Database.Host, before)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := Database{Host: "localhost", Port: 5432, Name: "vatsim_ops", User: "u", Password: "p", SSLMode: "disable"}
	dsn := d.DSN()
	if dsn == "" {
		t.Fatal("expected a non-empty DSN")
	}
}
