package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when it is missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := shared.LoadConfig(configPath); errors.Is(err, shared.ErrMissingConfig) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ Created %s\n", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.openDatabase(); err != nil {
		return err
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("%w: failed to run migrations: %v", shared.ErrLocalWrite, err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	r.logger.Warn("rolling back last migration", "path", r.config.Database.Path)
	if err := shared.RollbackMigration(r.db); err != nil {
		return fmt.Errorf("%w: rollback failed: %v", shared.ErrLocalWrite, err)
	}
	return r.writePlain("✓ Rolled back the last migration\n")
}
