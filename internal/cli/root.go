// Package cli holds the clover command tree
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/app"
	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/logging"
)

// runtime carries what PersistentPreRunE loaded to the subcommands
type runtime struct {
	envFile string
	cfg     *config.Config
	logger  ectologger.Logger
}

// NewRootCommand builds the clover command tree
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "clover",
		Short: "Contact identity reconciliation service",
		Long: `clover links contact observations that share an email or phone number into clusters
with one primary contact, and serves the consolidated view over HTTP and Kafka.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.envFile)
			if err != nil {
				return err
			}
			if cfg.Version == "dev" && version != "" {
				cfg.Version = version
			}

			logger, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
			if err != nil {
				return err
			}

			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	root.AddCommand(
		NewServeCommand(rt),
		NewMigrateCommand(rt),
		NewIdentifyCommand(rt),
		NewContactsCommand(rt),
		NewSeedCommand(rt),
		NewResetCommand(rt),
	)

	return root
}

// withEngine starts the engine and its storage without the HTTP server, runs fn, then stops everything
func (rt *runtime) withEngine(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a := app.New(rt.cfg, rt.logger)
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			rt.logger.WithError(err).Warn("Failed to stop cleanly")
		}
	}()

	return fn(clovercontext.SetSource(ctx, clovercontext.SourceCLI), a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
