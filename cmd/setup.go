package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	s, err := r.open()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	versions, err := shared.AppliedVersions(s.db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready (%d migrations applied)\n", len(versions))
}

// SetupConfig writes the default configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Configuration written to %s\n", path)
}

// SetupRollback rolls back the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}

	if err := shared.RollbackMigration(s.db); err != nil {
		return err
	}

	versions, err := shared.AppliedVersions(s.db)
	if err != nil {
		return err
	}

	r.logger.Warn("rolled back migration", "remaining", len(versions))
	return r.writePlain("✓ Rolled back one migration (%d remaining)\n", len(versions))
}
