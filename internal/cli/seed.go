package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/seeder"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample orders into an empty store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s *seeder.Seeder
			return runOnce(cmd.Context(), fx.Options(seeder.Module, fx.Populate(&s)), func(ctx context.Context) error {
				n, err := s.Orders(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seed data applied (%d orders)\n", n)
				return nil
			})
		},
	}
}
