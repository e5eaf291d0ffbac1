package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/config"
	"github.com/quejas/complaint-service/internal/observability"
	"github.com/quejas/complaint-service/internal/persistence"
	"github.com/quejas/complaint-service/internal/repository"
	"github.com/quejas/complaint-service/internal/service"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "complaint-service",
		Short:         "Complaint intake service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newBootstrapAdminCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			return persistence.RunMigrations(cmd.Context(), env.pg.PoolHandle(), env.logger)
		},
	}
}

func newBootstrapAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the administrator credential if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.close()
			if err := persistence.RunMigrations(ctx, env.pg.PoolHandle(), env.logger); err != nil {
				return err
			}
			created, err := newAuthService(env).Bootstrap(ctx)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin credential %q created\n", env.cfg.Auth.AdminUsername)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin credential %q already present\n", env.cfg.Auth.AdminUsername)
			}
			return nil
		},
	}
}

// environment holds what every command needs: config, logger and a live pool.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger, pg: pg}, nil
}

func (e *environment) close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func newAuthService(env *environment) *service.AuthService {
	return service.NewAuthService(env.cfg.Auth, service.AuthDependencies{
		CredentialRepo: repository.NewCredentialRepository(env.pg.PoolHandle()),
		Logger:         env.logger,
	})
}
