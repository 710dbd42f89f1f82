package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/database"
	"github.com/sanchez314c/agent-chat/internal/migration"
	"go.uber.org/zap"
)

// =============================================================================
// migrate
// =============================================================================

// runMigrate manages the schema of the sql credential backend.
func runMigrate(args []string) error {
	if len(args) < 1 {
		printMigrateUsage()
		return fmt.Errorf("missing migrate subcommand")
	}
	sub, rest := args[0], args[1:]
	if sub == "help" || sub == "-h" || sub == "--help" {
		printMigrateUsage()
		return nil
	}

	fs, configPath := commandFlags("migrate " + sub)
	_ = fs.Parse(rest)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	return withMigrator(ctx, cfg.Database, logger, func(cli *migration.CLI) error {
		switch sub {
		case "up":
			return cli.RunUp(ctx)
		case "down":
			return cli.RunDown(ctx)
		case "reset":
			return cli.RunDownAll(ctx)
		case "status":
			return cli.RunStatus(ctx)
		case "version":
			return cli.RunVersion(ctx)
		case "goto":
			v, err := versionArg(fs.Args())
			if err != nil {
				return err
			}
			return cli.RunGoto(ctx, uint(v))
		case "force":
			v, err := versionArg(fs.Args())
			if err != nil {
				return err
			}
			return cli.RunForce(ctx, v)
		default:
			printMigrateUsage()
			return fmt.Errorf("unknown migrate subcommand: %s", sub)
		}
	})
}

// withMigrator opens the configured database, runs fn and closes both.
func withMigrator(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, fn func(*migration.CLI) error) error {
	dialect, err := migration.ParseDialect(cfg.Driver)
	if err != nil {
		return err
	}
	pool, err := database.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	sqlDB, err := pool.DB().DB()
	if err != nil {
		return err
	}
	m, err := migration.New(ctx, sqlDB, dialect, migration.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(migration.NewCLI(m))
}

func versionArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one version argument")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q", args[0])
	}
	return v, nil
}

func printMigrateUsage() {
	fmt.Println(`Credential database migrations

Usage:
  agentchat migrate <subcommand> [--config <path>] [version]

Subcommands:
  up        Apply all pending migrations
  down      Roll back the last migration
  reset     Roll back all migrations
  status    Show migration status
  version   Show current migration version
  goto <n>  Migrate to version n
  force <n> Record version n without running migrations

The database section of the configuration selects the driver.`)
}
