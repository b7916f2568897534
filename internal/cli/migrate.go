package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/migration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the order schema",
	}
	cmd.PersistentFlags().String("dir", "", "Directory of extra SQL migrations applied after the order schema")

	down := migrateCmd("down", "Roll back applied migrations", func(ctx context.Context, cmd *cobra.Command, m *migration.Migrator) error {
		steps, _ := cmd.Flags().GetInt("steps")
		all, _ := cmd.Flags().GetBool("all")
		n, err := m.Down(ctx, steps, all)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations rolled back (%d)\n", n)
		return nil
	})
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	down.Flags().Bool("all", false, "Roll back every applied migration")

	cmd.AddCommand(
		migrateCmd("up", "Apply pending migrations", func(ctx context.Context, cmd *cobra.Command, m *migration.Migrator) error {
			n, err := m.Up(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%d)\n", n)
			return nil
		}),
		down,
		migrateCmd("version", "Print the applied schema version", func(ctx context.Context, cmd *cobra.Command, m *migration.Migrator) error {
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		}),
	)
	return cmd
}

type migrateFunc func(ctx context.Context, cmd *cobra.Command, m *migration.Migrator) error

func migrateCmd(use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			var m *migration.Migrator
			return runOnce(cmd.Context(), fx.Options(migration.Module, fx.Populate(&m)), func(ctx context.Context) error {
				return fn(ctx, cmd, m.WithDir(dir))
			})
		},
	}
}
