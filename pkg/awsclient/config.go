package awsclient

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the AWS connection settings shared by every service client.
// Endpoint overrides each client's BaseEndpoint (LocalStack or similar).
type Config struct {
	Enabled         bool   `toml:"enabled"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled         string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled only ever turns on.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.AccessKeyID != "" {
		c.AccessKeyID = overlay.AccessKeyID
	}
	if overlay.SecretAccessKey != "" {
		c.SecretAccessKey = overlay.SecretAccessKey
	}
}

// StaticCredentials reports whether both static keys are configured.
func (c *Config) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func (c *Config) loadDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	for name, dst := range map[string]*string{
		env.Region:          &c.Region,
		env.Endpoint:        &c.Endpoint,
		env.AccessKeyID:     &c.AccessKeyID,
		env.SecretAccessKey: &c.SecretAccessKey,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}
