package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost            = "CURATOR_SERVER_HOST"
	EnvServerPort            = "CURATOR_SERVER_PORT"
	EnvServerReadTimeout     = "CURATOR_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "CURATOR_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout = "CURATOR_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return duration(c.ReadTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return duration(c.WriteTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return duration(c.ShutdownTimeout) }

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	dst := c.timeouts()
	for field, v := range overlay.timeouts() {
		if *v != "" {
			*dst[field] = *v
		}
	}
}

// timeouts maps each duration setting's config key to its field.
func (c *ServerConfig) timeouts() map[string]*string {
	return map[string]*string{
		"read_timeout":     &c.ReadTimeout,
		"write_timeout":    &c.WriteTimeout,
		"shutdown_timeout": &c.ShutdownTimeout,
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	defaults := map[string]string{
		"read_timeout":     "1m",
		"write_timeout":    "5m",
		"shutdown_timeout": "30s",
	}
	for field, ptr := range c.timeouts() {
		if *ptr == "" {
			*ptr = defaults[field]
		}
	}
}

func (c *ServerConfig) loadEnv() {
	setFromEnv(EnvServerHost, &c.Host)
	setFromEnv(EnvServerReadTimeout, &c.ReadTimeout)
	setFromEnv(EnvServerWriteTimeout, &c.WriteTimeout)
	setFromEnv(EnvServerShutdownTimeout, &c.ShutdownTimeout)

	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for field, ptr := range c.timeouts() {
		if _, err := time.ParseDuration(*ptr); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return nil
}

func setFromEnv(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
