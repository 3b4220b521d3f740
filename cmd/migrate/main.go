// Command migrate manages the papers schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/config"
	"github.com/helixir/paper-parsing-service/internal/database"
	"github.com/helixir/paper-parsing-service/internal/observability"
)

const usage = `usage: migrate [-path dir] <command>

commands:
  up        apply all pending migrations
  down      roll back all migrations
  steps N   apply N migrations (negative N rolls back)
  version   print the current schema version
  force V   mark the schema as version V without running anything
`

func main() {
	migrationsPath := flag.String("path", "", "override the migrations directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if err := run(*migrationsPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(pathOverride string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if pathOverride != "" {
		dir = pathOverride
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch args[0] {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "steps":
		var n int
		if n, err = numericArg(args, "steps"); err == nil {
			err = migrator.Steps(n)
		}
	case "force":
		var v int
		if v, err = numericArg(args, "force"); err == nil {
			if v < 0 {
				return errors.New("force: version must be non-negative")
			}
			err = migrator.Force(v)
		}
	case "version":
		// Fall through to the version report below.
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}

	reportVersion(migrator, logger)
	return nil
}

// numericArg reads the required integer argument following a command.
func numericArg(args []string, command string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s: missing numeric argument", command)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: bad argument %q", command, args[1])
	}
	return n, nil
}

func reportVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
