package notify

import (
	"fmt"
	"net/mail"
	"os"
)

// Config holds notification delivery settings.
type Config struct {
	Sender string `toml:"sender"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Sender string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Sender == "" {
		c.Sender = "curator@localhost"
	}
	if env != nil && env.Sender != "" {
		if v := os.Getenv(env.Sender); v != "" {
			c.Sender = v
		}
	}
	if _, err := mail.ParseAddress(c.Sender); err != nil {
		return fmt.Errorf("invalid sender %q: %w", c.Sender, err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Sender != "" {
		c.Sender = overlay.Sender
	}
}
