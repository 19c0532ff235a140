// Package config loads the planner's runtime configuration from a JSON
// file, with database credentials and other secrets layered in from the
// process environment (optionally via a .env file).
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of settings one planner invocation needs beyond
// its command-line flags.
type Config struct {
	// Store settings.
	StoreDriver string `json:"store_driver"` // "postgres" or "sqlite"
	SQLitePath  string `json:"sqlite_path"`  // used when StoreDriver == "sqlite"

	// Postgres connection, populated from environment, not the file.
	DBHost string `json:"-"`
	DBPort int    `json:"-"`
	DBUser string `json:"-"`
	DBPass string `json:"-"`
	DBName string `json:"-"`

	// RunTimeout bounds a single planning run; exceeding it maps to a
	// timeout error and leaves persisted state untouched.
	RunTimeout time.Duration `json:"run_timeout"`

	// Telemetry settings: when ModbusAddress is empty, no Modbus client
	// is constructed and the level must be supplied on the command line
	// instead. Suction pressure is always read from the store.
	ModbusAddress string `json:"modbus_address"`
	ModbusSlaveID int    `json:"modbus_slave_id"`

	// Status server settings.
	StatusServerAddr string `json:"status_server_addr"` // empty disables the server

	// MetricsAddr, when non-empty, serves Prometheus metrics at /metrics.
	MetricsAddr string `json:"metrics_addr"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		StoreDriver:      "sqlite",
		SQLitePath:       "planner.db",
		RunTimeout:       30 * time.Second,
		ModbusAddress:    "",
		ModbusSlaveID:    1,
		StatusServerAddr: "",
		MetricsAddr:      "",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads the JSON file at filename, then layers database credentials
// in from the environment (after loading envPath, if it exists, via
// godotenv; a missing .env file is not an error).
func Load(filename, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := DefaultConfig()
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("config: open %s: %w", filename, err)
		}
		defer file.Close()
		if err := cfg.decode(file); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("config: decode json: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DBHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.DBPort)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DBUser = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		c.DBPass = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DBName = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.StoreDriver != "postgres" && c.StoreDriver != "sqlite" {
		return fmt.Errorf("store_driver must be \"postgres\" or \"sqlite\", got %q", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" {
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("postgres store requires DB_HOST, DB_USER and DB_NAME in the environment")
		}
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("sqlite_path cannot be empty")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be greater than 0, got: %s", c.RunTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s", c.LogFormat)
	}
	return nil
}

// MarshalJSON renders RunTimeout as a duration string rather than a
// nanosecond count.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		RunTimeout string `json:"run_timeout"`
	}{
		Alias:      (*Alias)(c),
		RunTimeout: c.RunTimeout.String(),
	})
}

// UnmarshalJSON parses RunTimeout from a duration string.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		RunTimeout string `json:"run_timeout"`
	}{Alias: (*Alias)(c)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.RunTimeout != "" {
		d, err := time.ParseDuration(aux.RunTimeout)
		if err != nil {
			return fmt.Errorf("invalid run_timeout: %w", err)
		}
		c.RunTimeout = d
	}
	return nil
}

// String renders the configuration as indented JSON, secrets excluded.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
