package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/orderprovider/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderprovider/internal/version"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "ORDERPROVIDER_POSTGRES_DSN"
)

var errMissingDSN = errors.New(envPostgresDSN + " (or --dsn) is required")

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type migrateOptions struct {
	dsn   string
	steps int
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &migrateOptions{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Управление схемой PostgreSQL сервиса заказов",
		Version:       version.Current().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")

	up := &cobra.Command{
		Use:   "up",
		Short: "Применить миграции (--steps=0 применяет все)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateUp(ctx, opts.steps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), "migrate up ok", store)
			})
		},
	}
	up.Flags().IntVar(&opts.steps, "steps", 0, "number of migrations to apply")

	down := &cobra.Command{
		Use:   "down",
		Short: "Откатить миграции (по умолчанию одну)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateDown(ctx, opts.steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), "migrate down ok", store)
			})
		},
	}
	down.Flags().IntVar(&opts.steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Показать версию схемы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *postgres.Store) error {
				return printStatus(ctx, cmd.OutOrStdout(), "migration status", store)
			})
		},
	}

	root.AddCommand(up, down, status)
	return root
}

func resolveDSN(flagValue string) (string, error) {
	if dsn := strings.TrimSpace(flagValue); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(os.Getenv(envPostgresDSN)); dsn != "" {
		return dsn, nil
	}
	return "", errMissingDSN
}

func withStore(cmd *cobra.Command, opts *migrateOptions, fn func(context.Context, *postgres.Store) error) error {
	dsn, err := resolveDSN(opts.dsn)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

func printStatus(ctx context.Context, out io.Writer, prefix string, store *postgres.Store) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, state.Pending)
	return err
}
