// Package config loads liferpg settings from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. Environment variables:
//   - LIFERPG_DATA_DIR: data directory (default: ~/.liferpg)
//   - LIFERPG_STORAGE_BACKEND: "json" (default), "sqlite" or "postgres"
//   - LIFERPG_JSON_PATH: JSON store path, inside the data directory
//   - LIFERPG_SQLITE_PATH: SQLite database path, inside the data directory
//   - LIFERPG_POSTGRES_URL: PostgreSQL connection string
//   - LIFERPG_USER: active user name (default: main)
//   - LIFERPG_TZ: IANA time zone that defines a calendar day (default: UTC)
//   - LIFERPG_NATS_URL: NATS server for event publishing (default: disabled)
//   - DEBUG: any non-empty value enables debug logging
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embed zone data for LIFERPG_TZ on hosts without it

	"gopkg.in/yaml.v3"

	"github.com/JamesPrial/liferpg/internal/pathutil"
)

// Backend names accepted by Storage.Backend.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

const (
	defaultDataDir  = "~/.liferpg"
	defaultUser     = "main"
	defaultTimezone = "UTC"
	configFileName  = "config.yaml"
	jsonFileName    = "liferpg.json"
	sqliteFileName  = "liferpg.db"
)

// Storage selects and locates the persistence backend.
type Storage struct {
	Backend     string `yaml:"backend"`
	JSONPath    string `yaml:"json_path"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
}

// Config is the resolved application configuration.
type Config struct {
	DataDir  string  `yaml:"data_dir"`
	Storage  Storage `yaml:"storage"`
	User     string  `yaml:"user"`
	Timezone string  `yaml:"timezone"`
	NATSURL  string  `yaml:"nats_url"`
	Debug    bool    `yaml:"debug"`

	loc *time.Location
}

// Default returns the built-in configuration before any resolution.
func Default() Config {
	return Config{
		DataDir:  defaultDataDir,
		Storage:  Storage{Backend: BackendJSON},
		User:     defaultUser,
		Timezone: defaultTimezone,
	}
}

// DefaultPath returns the config file location: config.yaml in the data
// directory named by LIFERPG_DATA_DIR, or in ~/.liferpg.
func DefaultPath() (string, error) {
	dir := strings.TrimSpace(os.Getenv("LIFERPG_DATA_DIR"))
	if dir == "" {
		dir = defaultDataDir
	}
	dir, err := pathutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and resolves paths. An empty path means DefaultPath. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.DataDir, "LIFERPG_DATA_DIR")
	setString(&c.Storage.Backend, "LIFERPG_STORAGE_BACKEND")
	setString(&c.Storage.JSONPath, "LIFERPG_JSON_PATH")
	setString(&c.Storage.SQLitePath, "LIFERPG_SQLITE_PATH")
	setString(&c.Storage.PostgresURL, "LIFERPG_POSTGRES_URL")
	setString(&c.User, "LIFERPG_USER")
	setString(&c.Timezone, "LIFERPG_TZ")
	setString(&c.NATSURL, "LIFERPG_NATS_URL")
	if v := strings.TrimSpace(os.Getenv("DEBUG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		} else {
			c.Debug = true
		}
	}
}

// resolve validates the configuration and turns relative paths into absolute
// ones inside the data directory.
func (c *Config) resolve() error {
	dataDir, err := pathutil.ExpandHome(strings.TrimSpace(c.DataDir))
	if err != nil {
		return err
	}
	if dataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.DataDir, err = filepath.Abs(dataDir); err != nil {
		return fmt.Errorf("failed to resolve data_dir: %w", err)
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendJSON
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresURL) == "" {
			return fmt.Errorf("storage backend %q requires LIFERPG_POSTGRES_URL or storage.postgres_url", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q. Expected 'json', 'sqlite' or 'postgres'", c.Storage.Backend)
	}

	if c.Storage.JSONPath, err = c.dataPath(c.Storage.JSONPath, jsonFileName); err != nil {
		return fmt.Errorf("invalid storage.json_path: %w", err)
	}
	if c.Storage.SQLitePath, err = c.dataPath(c.Storage.SQLitePath, sqliteFileName); err != nil {
		return fmt.Errorf("invalid storage.sqlite_path: %w", err)
	}

	c.User = strings.TrimSpace(c.User)
	if c.User == "" {
		c.User = defaultUser
	}

	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.loc, err = time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

func (c *Config) dataPath(custom, fallback string) (string, error) {
	if strings.TrimSpace(custom) == "" {
		return filepath.Join(c.DataDir, fallback), nil
	}
	return pathutil.ResolveSafePath(c.DataDir, strings.TrimSpace(custom))
}

// Location returns the time zone that defines a calendar day.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
