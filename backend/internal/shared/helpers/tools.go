package helpers

import (
	"fmt"
	"log/slog"

	"room-bridge/backend/internal/config"
	"room-bridge/backend/internal/migrations"
	"room-bridge/backend/pkg/migrator"
	"room-bridge/backend/pkg/utils"
)

func GetLogger(config *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       config.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	logHandler := slog.NewJSONHandler(config.LogOutput, &logOptions)

	return slog.New(logHandler).With(slog.String("version", utils.GetVersionShort()))
}

func RunMigrations(l *slog.Logger, c *config.Config) error {
	l.Info("Running database migrations", slog.String("dialect", c.Dialect.String()))

	fsys, err := migrations.GetFS(c.Dialect)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	mig, err := migrator.New(l, c.Dialect, c.Database, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := mig.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	l.Info("Database migrations completed successfully")

	return nil
}
