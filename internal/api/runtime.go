package api

import (
	"github.com/JaimeStill/curator/internal/config"
	"github.com/JaimeStill/curator/internal/infrastructure"
	"github.com/JaimeStill/curator/internal/sources"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Sources       sources.Config
	MaxUploadSize int64
	MaxListSize   int32
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Sources:        sourcesConfig(&cfg.Automation),
		MaxUploadSize:  cfg.API.MaxUploadSizeBytes(),
		MaxListSize:    cfg.Storage.MaxListSize,
	}
}

func sourcesConfig(c *config.AutomationConfig) sources.Config {
	return sources.Config{
		RetrievalFunctionARN:         c.RetrievalFunctionARN,
		ParserPrefix:                 c.ParserPrefix,
		PersistOnNotificationFailure: c.PersistOnNotificationFailure,
	}
}
