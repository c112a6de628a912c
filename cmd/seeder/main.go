package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"marketregime/internal/adapters/barfile"
	"marketregime/internal/adapters/clickhouse"
	"marketregime/internal/adapters/config"
	"marketregime/internal/adapters/postgres"
	chrepo "marketregime/internal/repository/clickhouse"
	"marketregime/internal/seeds"
	devseeds "marketregime/internal/seeds/dev"
	testseeds "marketregime/internal/seeds/test"
	"marketregime/migrations"
	"marketregime/pkg/logger"
)

func main() {
	// Parse flags
	env := flag.String("env", "dev", "Environment: dev, test")
	dryRun := flag.Bool("dry-run", false, "List seed functions without executing")
	migrate := flag.Bool("migrate", true, "Apply ClickHouse and PostgreSQL migrations first")
	importDir := flag.String("import", "", "Import {symbol}_{timeframe}.csv files from this directory instead of seeding")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	log.Infow("Starting seeder",
		"environment", *env,
		"dry_run", *dryRun,
		"import", *importDir,
		"database", cfg.ClickHouse.Database,
	)

	// Get seed functions for environment
	seedFuncs := getSeedFunctions(*env)
	if *importDir == "" && len(seedFuncs) == 0 {
		log.Warnw("No seeds available for environment", "environment", *env)
		return
	}

	log.Infow("Found seed functions", "environment", *env, "count", len(seedFuncs))

	if *dryRun {
		log.Info("✅ Dry-run mode: seed functions validated")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrate, *importDir, seedFuncs, log); err != nil {
		log.Errorw("Seeder failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, migrate bool, importDir string, seedFuncs []seeds.Func, log *logger.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// Connect to ClickHouse
	ch, err := clickhouse.NewClient(connectCtx, cfg.ClickHouse)
	if err != nil {
		return err
	}
	defer ch.Close()

	log.Info("Successfully connected to ClickHouse")

	if migrate {
		if err := migrations.Apply(ctx, migrations.ClickHouse, func(ctx context.Context, stmt string) error {
			return ch.Exec(ctx, stmt)
		}); err != nil {
			return err
		}
		if err := migratePostgres(ctx, cfg, log); err != nil {
			return err
		}
		log.Info("✅ Migrations applied")
	}

	writer := chrepo.NewMarketDataRepository(ch.Conn())

	if importDir != "" {
		opts, err := csvOptions(cfg.Input)
		if err != nil {
			return err
		}
		imported, err := seeds.ImportDir(ctx, writer, cfg.Input.Exchange, importDir, opts, log)
		if err != nil {
			return err
		}
		log.Infow("✅ Import completed", "files", len(imported))
		return nil
	}

	seeder := seeds.New(writer, cfg.Input.Exchange, log)

	// Execute each seed function in order
	for i, seedFunc := range seedFuncs {
		log.Infow("Executing seed", "step", i+1, "total", len(seedFuncs))

		if err := seedFunc(ctx, seeder); err != nil {
			return fmt.Errorf("seed step %d: %w", i+1, err)
		}

		log.Infow("✅ Seed completed", "step", i+1)
	}

	log.Infow("✅ All seeds applied successfully", "bars", seeder.Inserted())
	return nil
}

// migratePostgres creates the run table when PostgreSQL is enabled
func migratePostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.Postgres.Enabled {
		return nil
	}

	pg, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	log.Info("Successfully connected to PostgreSQL")

	return migrations.Apply(ctx, migrations.Postgres, func(ctx context.Context, stmt string) error {
		_, err := pg.DB().ExecContext(ctx, stmt)
		return err
	})
}

func csvOptions(in config.InputConfig) (barfile.Options, error) {
	opts := barfile.Options{DecimalComma: in.DecimalComma, TimeLayout: in.TimeLayout}
	if in.Delimiter != "" {
		if utf8.RuneCountInString(in.Delimiter) != 1 {
			return opts, fmt.Errorf("delimiter must be one character, got %q", in.Delimiter)
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(in.Delimiter)
	}
	return opts, nil
}

// getSeedFunctions returns seed functions for the given environment
// Order matters: series are logged in this order
func getSeedFunctions(env string) []seeds.Func {
	switch env {
	case "dev":
		return []seeds.Func{
			devseeds.SeedTrending,
			devseeds.SeedRanging,
		}
	case "test":
		return []seeds.Func{
			testseeds.SeedBars,
		}
	default:
		return nil
	}
}
