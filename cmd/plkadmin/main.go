package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/cli"
	"github.com/Artemka007/plk-auth/internal/config"
	"github.com/Artemka007/plk-auth/internal/identity"
	"github.com/Artemka007/plk-auth/internal/obs"
	"github.com/Artemka007/plk-auth/internal/session"
	"github.com/Artemka007/plk-auth/internal/store/pg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Environment)
	logger.Info().Str("version", obs.BuildInfo()).Msg("plkadmin starting")

	if cfg.Postgres.DSN == "" {
		logger.Fatal().Msg("postgres DSN is required (set PLK_POSTGRES_DSN or postgres.dsn in config.yaml)")
	}
	store, err := pg.Open(cfg.Postgres.DSN, pg.PoolConfig{
		MaxOpen:         cfg.Postgres.MaxOpen,
		MaxIdle:         cfg.Postgres.MaxIdle,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open postgres")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := identity.ValidateCatalog(ctx, store); err != nil {
		logger.Fatal().Err(err).Msg("permission catalog out of sync; run migrations and seeds")
	}

	auditLog, err := audit.New(store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init audit log")
	}
	users, err := identity.NewService(store, auditLog,
		identity.WithGeneratedPasswordLength(cfg.Password.GeneratedLength))
	if err != nil {
		logger.Fatal().Err(err).Msg("init identity service")
	}
	resolver, err := identity.NewResolver(store, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("init permission resolver")
	}
	auth, err := session.NewService(store, auditLog, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init session service")
	}

	if days := cfg.Audit.RetentionDays; days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		if n, err := auditLog.CleanupOlderThan(ctx, cutoff); err != nil {
			logger.Warn().Err(err).Msg("audit retention sweep failed")
		} else if n > 0 {
			logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("audit retention sweep")
		}
	}

	if err := auditLog.Info(ctx, audit.ActionSystemStartup,
		fmt.Sprintf("plkadmin %s started", obs.BuildInfo())); err != nil {
		logger.Warn().Err(err).Msg("startup audit entry lost")
	}

	console, err := cli.NewConsole(&cli.Env{
		Session:  auth.NewSession(),
		Auth:     auth,
		Users:    users,
		Resolver: resolver,
		Audit:    auditLog,
		Out:      os.Stdout,
		PageSize: cfg.Audit.PageSize,
		Log:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init console")
	}

	if err := console.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("console terminated")
	}
	logger.Info().Msg("plkadmin stopped")
}
