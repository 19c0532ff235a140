package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	c := DefaultConfig()
	c.StoreDriver = "mongo"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}

func TestValidateRequiresPostgresCredentials(t *testing.T) {
	c := DefaultConfig()
	c.StoreDriver = "postgres"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when postgres credentials are missing")
	}
	c.DBHost, c.DBUser, c.DBName = "localhost", "u", "db"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	c := DefaultConfig()
	c.RunTimeout = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero run_timeout")
	}
}

func TestRunTimeoutJSONRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.RunTimeout = 45 * time.Second

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Config
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.RunTimeout != 45*time.Second {
		t.Fatalf("RunTimeout round-trip = %v, want 45s", decoded.RunTimeout)
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "planner.json")
	if err := os.WriteFile(cfgPath, []byte(`{"store_driver":"postgres","run_timeout":"10s"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "planner")
	t.Setenv("DB_NAME", "regime")

	cfg, err := Load(cfgPath, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != "postgres" {
		t.Errorf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if cfg.RunTimeout != 10*time.Second {
		t.Errorf("RunTimeout = %v, want 10s", cfg.RunTimeout)
	}
	if cfg.DBHost != "db.internal" || cfg.DBUser != "planner" || cfg.DBName != "regime" {
		t.Errorf("environment credentials not applied: %+v", cfg)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %q, want sqlite default", cfg.StoreDriver)
	}
}
