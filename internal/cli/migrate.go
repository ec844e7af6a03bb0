package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/app"
)

func NewMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfg.StoreDriver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, rt.cfg.StoreDriver)
			}
			if err := app.Migrate(cmd.Context(), rt.cfg, rt.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
