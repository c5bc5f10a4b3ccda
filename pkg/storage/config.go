package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Azure Blob Storage connection parameters.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	MaxListSize      int32  `toml:"max_list_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	MaxListSize      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.MaxListSize > 0 {
		c.MaxListSize = overlay.MaxListSize
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "uploads"
	}
	if c.MaxListSize <= 0 {
		c.MaxListSize = 100
	}
}

func (c *Config) loadEnv(env *Env) {
	lookup := func(name string) string {
		if name == "" {
			return ""
		}
		return os.Getenv(name)
	}

	if v := lookup(env.ContainerName); v != "" {
		c.ContainerName = v
	}
	if v := lookup(env.ConnectionString); v != "" {
		c.ConnectionString = v
	}
	if v := lookup(env.MaxListSize); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			c.MaxListSize = int32(n)
		}
	}
}

func (c *Config) validate() error {
	c.MaxListSize = min(c.MaxListSize, MaxListCap)

	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString == "" {
		return fmt.Errorf("connection_string required")
	}
	return nil
}
