package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/Artemka007/plk-auth/internal/config"
	"github.com/Artemka007/plk-auth/internal/migrate"
	"github.com/Artemka007/plk-auth/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Environment)

	var (
		dsn           = flag.String("dsn", cfg.Postgres.DSN, "PostgreSQL DSN")
		migrationsDir = flag.String("migrations", cfg.Migrations.Dir, "Path to SQL migrations")
		seedsDir      = flag.String("seeds", cfg.Migrations.SeedsDir, "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		logger.Fatal().Msg("missing DSN: provide -dsn or PLK_POSTGRES_DSN")
	}
	if flag.NArg() == 0 {
		logger.Fatal().Msg("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	runner := migrate.NewRunner(db, *migrationsDir, *seedsDir, logger)

	switch cmd := flag.Arg(0); cmd {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(logger, cmd, err)
		logger.Info().Int("applied", len(applied)).Msg("migrations up to date")
	case "down":
		name, err := runner.Down(ctx)
		exitOn(logger, cmd, err)
		logger.Info().Str("migration", name).Msg("rolled back")
	case "seed":
		applied, err := runner.Seed(ctx)
		exitOn(logger, cmd, err)
		logger.Info().Int("applied", len(applied)).Msg("seeds up to date")
	case "status":
		history, err := runner.Status(ctx)
		exitOn(logger, cmd, err)
		for _, name := range history {
			fmt.Println(name)
		}
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command")
	}
}

func exitOn(logger zerolog.Logger, cmd string, err error) {
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migrate failed")
	}
}
