// Package config provides configuration loading for linkup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/librelink"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory under the user config dir holding linkup files.
	AppDir = "linkup"
	// FileName is the default config file name.
	FileName = "config.yaml"
)

// Environment overrides.
const (
	EnvRegion     = "LINKUP_REGION"
	EnvUsername   = "LINKUP_USERNAME"
	EnvPassword   = "LINKUP_PASSWORD"
	EnvConnection = "LINKUP_CONNECTION"
)

// Storage drivers. Only sqlite and postgres outlive the process.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config is one read-only snapshot of the user's settings.
type Config struct {
	Region         librelink.Region `yaml:"region"`
	Username       string           `yaml:"username"`
	Password       string           `yaml:"password"`
	Connection     string           `yaml:"connection"`
	GlucoseUnits   bloodsugar.Unit  `yaml:"glucose_units"`
	Warnings       WarningConfig    `yaml:"warnings"`
	UpdateInterval float64          `yaml:"update_interval"`
	Client         ClientConfig     `yaml:"client"`
	Storage        StorageConfig    `yaml:"storage"`
	MetricsAddr    string           `yaml:"metrics_addr"`
	NATS           NATSConfig       `yaml:"nats"`
}

// WarningConfig toggles the glucose alerts.
type WarningConfig struct {
	Low        bool `yaml:"low"`
	High       bool `yaml:"high"`
	Background bool `yaml:"background"`
}

// ClientConfig configures the LibreLinkUp HTTP client.
type ClientConfig struct {
	Version string        `yaml:"version"`
	Product string        `yaml:"product"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig configures the local reading store.
type StorageConfig struct {
	// Driver is memory, sqlite, postgres or none.
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `yaml:"dsn"`
	// Retention is how long stored readings are kept.
	Retention time.Duration `yaml:"retention"`
}

// NATSConfig configures publishing display states to NATS.
type NATSConfig struct {
	// URL is the NATS server URL (empty = disabled).
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DefaultConfig returns a Config with the extension's defaults.
func DefaultConfig() *Config {
	return &Config{
		GlucoseUnits: bloodsugar.UnitMgdl,
		Warnings: WarningConfig{
			Low:        true,
			High:       true,
			Background: true,
		},
		UpdateInterval: 10,
		Client: ClientConfig{
			Version: librelink.DefaultVersion,
			Product: librelink.DefaultProduct,
			Timeout: librelink.DefaultTimeout,
		},
		Storage: StorageConfig{
			Driver:    DriverMemory,
			Retention: 24 * time.Hour,
		},
		NATS: NATSConfig{
			Subject: "linkup.display",
		},
	}
}

// Interval returns the poll interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.UpdateInterval * float64(time.Minute))
}

// Durable reports whether stored readings survive a restart.
func (c Config) Durable() bool {
	return c.Storage.Driver == DriverSQLite || c.Storage.Driver == DriverPostgres
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if _, err := librelink.ResolveHost(c.Region); err != nil {
		return fmt.Errorf("region: %w", err)
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("username and password are required")
	}
	if !c.GlucoseUnits.Valid() {
		return fmt.Errorf("glucose_units must be %q or %q", bloodsugar.UnitMgdl, bloodsugar.UnitMmol)
	}
	if c.Interval() <= 0 {
		return errors.New("update_interval must be a positive number of minutes")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverNone:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// ApplyEnv overrides account settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRegion); v != "" {
		c.Region = librelink.Region(v)
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvConnection); v != "" {
		c.Connection = v
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load reads path (a missing file is not an error), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	config, err := LoadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		config = DefaultConfig()
	} else if err != nil {
		return nil, err
	}

	config.ApplyEnv()
	config.Region = config.Region.Normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the account password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Dir returns the linkup directory under the user config dir.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppDir)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName)
}

// Provider hands out the configuration snapshot for one tick.
type Provider interface {
	Snapshot() Config
}

// Static is a Provider that never changes.
type Static Config

// Snapshot implements Provider.
func (s Static) Snapshot() Config {
	return Config(s)
}
