package config

import (
	"fmt"

	"github.com/JaimeStill/curator/pkg/formatting"
	"github.com/JaimeStill/curator/pkg/middleware"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "CURATOR_CORS_ENABLED",
	Origins:          "CURATOR_CORS_ORIGINS",
	AllowedMethods:   "CURATOR_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "CURATOR_CORS_ALLOWED_HEADERS",
	AllowCredentials: "CURATOR_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "CURATOR_CORS_MAX_AGE",
}

// APIConfig holds API routing, CORS, and upload settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS config.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil || size <= 0 {
		return fmt.Errorf("invalid max_upload_size: %q", c.MaxUploadSize)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
}

func (c *APIConfig) loadEnv() {
	setFromEnv("CURATOR_API_BASE_PATH", &c.BasePath)
	setFromEnv("CURATOR_API_MAX_UPLOAD_SIZE", &c.MaxUploadSize)
}
