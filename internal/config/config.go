// Package config loads the curator service configuration from TOML files,
// an optional .env file, and CURATOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/curator/pkg/awsclient"
	"github.com/JaimeStill/curator/pkg/database"
	"github.com/JaimeStill/curator/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvCuratorEnv             = "CURATOR_ENV"
	EnvCuratorShutdownTimeout = "CURATOR_SHUTDOWN_TIMEOUT"
	EnvCuratorVersion         = "CURATOR_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "CURATOR_DB_HOST",
	Port:            "CURATOR_DB_PORT",
	Name:            "CURATOR_DB_NAME",
	User:            "CURATOR_DB_USER",
	Password:        "CURATOR_DB_PASSWORD",
	SSLMode:         "CURATOR_DB_SSL_MODE",
	MaxOpenConns:    "CURATOR_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CURATOR_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CURATOR_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CURATOR_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "CURATOR_STORAGE_CONTAINER_NAME",
	ConnectionString: "CURATOR_STORAGE_CONNECTION_STRING",
	MaxListSize:      "CURATOR_STORAGE_MAX_LIST_SIZE",
}

var awsEnv = &awsclient.Env{
	Enabled:         "CURATOR_AWS_ENABLED",
	Region:          "CURATOR_AWS_REGION",
	Endpoint:        "CURATOR_AWS_ENDPOINT",
	AccessKeyID:     "CURATOR_AWS_ACCESS_KEY_ID",
	SecretAccessKey: "CURATOR_AWS_SECRET_ACCESS_KEY",
}

// Config is the root configuration for the curator service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	AWS             awsclient.Config `toml:"aws"`
	Automation      AutomationConfig `toml:"automation"`
	API             APIConfig        `toml:"api"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the CURATOR_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCuratorEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Load reads .env (if present) into the process environment without
// overriding variables already set, then the base config, the environment
// overlay, and finalizes all values. Missing files fall back to defaults.
func Load() (*Config, error) {
	cfg, err := loadFiles()
	if err != nil {
		return nil, err
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// LoadDatabase resolves only the database section, for tools such as the
// migrator that need no other subsystem configured.
func LoadDatabase() (*database.Config, error) {
	cfg, err := loadFiles()
	if err != nil {
		return nil, err
	}

	if err := cfg.Database.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	return &cfg.Database, nil
}

func loadFiles() (*Config, error) {
	if _, err := os.Stat(DotEnvFile); err == nil {
		if err := godotenv.Load(DotEnvFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
		}
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.AWS.Merge(&overlay.AWS)
	c.Automation.Merge(&overlay.Automation)
	c.API.Merge(&overlay.API)
}

// Finalize applies defaults, environment overrides, and validation to every
// section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.AWS.Finalize(awsEnv); err != nil {
		return fmt.Errorf("aws: %w", err)
	}
	if err := c.Automation.Finalize(c.AWS.Enabled); err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	setFromEnv(EnvCuratorShutdownTimeout, &c.ShutdownTimeout)
	setFromEnv(EnvCuratorVersion, &c.Version)
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCuratorEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
