package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROVIDER_BASE_URL", "https://api.provider.test")
	t.Setenv("ENCRYPTION_SECRET", "secret")
	t.Setenv("ENCRYPTION_SALT", "salt")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = false, want true by default")
	}
	if len(cfg.Scheduler.ScheduleTimes) != 4 {
		t.Errorf("ScheduleTimes = %v, want 4 entries", cfg.Scheduler.ScheduleTimes)
	}
	if cfg.Scheduler.JobDelay != time.Second {
		t.Errorf("JobDelay = %v, want 1s", cfg.Scheduler.JobDelay)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = true, want false by default")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"missing provider url", "PROVIDER_BASE_URL"},
		{"missing encryption secret", "ENCRYPTION_SECRET"},
		{"missing encryption salt", "ENCRYPTION_SALT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load succeeded without %s, want error", tt.omit)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("SCHEDULER_ENABLED", "no")
	t.Setenv("SCHEDULER_TIMES", "02:30")
	t.Setenv("OTEL_ENABLED", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Server.Port = %q, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = true, want false")
	}
	if len(cfg.Scheduler.ScheduleTimes) != 1 || cfg.Scheduler.ScheduleTimes[0] != "02:30" {
		t.Errorf("ScheduleTimes = %v, want [02:30]", cfg.Scheduler.ScheduleTimes)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = false, want true")
	}
}

func TestLoadInvalidNumbers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load succeeded with invalid DB_PORT, want error")
	}
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "dbhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "require",
	}
	want := "host=dbhost port=5432 user=u password=p dbname=d sslmode=require"
	if got := db.ConnectionString(); got != want {
		t.Errorf("ConnectionString = %q, want %q", got, want)
	}
}
