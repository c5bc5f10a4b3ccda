// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies (logging, database, storage, AWS gateways) that
// domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/curator/internal/config"
	"github.com/JaimeStill/curator/pkg/awsclient"
	"github.com/JaimeStill/curator/pkg/database"
	"github.com/JaimeStill/curator/pkg/functions"
	"github.com/JaimeStill/curator/pkg/lifecycle"
	"github.com/JaimeStill/curator/pkg/notify"
	"github.com/JaimeStill/curator/pkg/schedule"
	"github.com/JaimeStill/curator/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Scheduler schedule.System
	Notifier  notify.System
	Functions functions.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
// With AWS disabled the gateways are local implementations that log instead
// of calling out.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}

	if !cfg.AWS.Enabled {
		logger.Warn("aws disabled, using local gateways")
		infra.Scheduler = schedule.NewLocal(logger)
		infra.Notifier = notify.NewLocal(logger)
		infra.Functions = functions.NewLocal(logger)
		return infra, nil
	}

	session, err := awsclient.Load(ctx, &cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("aws init failed: %w", err)
	}

	infra.Scheduler = schedule.NewFromSession(session, logger)
	infra.Notifier = notify.NewFromSession(session, cfg.Automation.Notify.Sender, logger)
	infra.Functions = functions.NewFromSession(session, logger)

	return infra, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
