// Package cli holds the universes command line: the API server, database
// maintenance and a terminal client for the inline card editors.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"universes/internal/config"
	"universes/internal/service"
)

type App struct {
	ConfigPath string

	cfg config.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "universes",
		Short:        "Universes and tasks tracker",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the API server, scheduler and bot
  universes serve

  # Rename a task through the card editors
  universes card edit task 12 name "Write the report"

  # Complete a task after the usual delay
  universes card complete 12
`),
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "TOML config file (overrides UNIVERSES_CONFIG)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.ConfigPath != "" {
			if err := os.Setenv("UNIVERSES_CONFIG", app.ConfigPath); err != nil {
				return err
			}
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		app.cfg = cfg
		return nil
	}

	cmd.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newPruneLogsCmd(app),
		newDigestCmd(app),
		newCardCmd(app),
	)
	return cmd
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled jobs and the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fxApp := fx.New(
				coreModule(app.cfg),
				serveModule(),
				fx.WithLogger(fxLogger),
			)
			if err := fxApp.Err(); err != nil {
				return err
			}
			startCtx, cancel := context.WithTimeout(cmd.Context(), fxApp.StartTimeout())
			defer cancel()
			if err := fxApp.Start(startCtx); err != nil {
				return err
			}
			select {
			case <-fxApp.Wait():
			case <-cmd.Context().Done():
			}
			stopCtx, cancelStop := context.WithTimeout(context.Background(), fxApp.StopTimeout())
			defer cancelStop()
			return fxApp.Stop(stopCtx)
		},
	}
}

// runOnce starts the core module, calls fn with its dependencies and
// stops again.
func runOnce(cmd *cobra.Command, app *App, fn any) error {
	fxApp := fx.New(
		coreModule(app.cfg),
		fx.WithLogger(fxLogger),
		fx.Invoke(fn),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	if err := fxApp.Start(cmd.Context()); err != nil {
		return err
	}
	return fxApp.Stop(context.Background())
}

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the database migrates it
			return runOnce(cmd, app, func(log *zap.Logger) {
				log.Info("database migrated", zap.String("database", app.cfg.DatabaseURL))
			})
		},
	}
}

func newPruneLogsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete logs whose task, universe or idea is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, app, func(m *service.MaintenanceService) error {
				n, err := m.PruneOrphanLogs(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d logs\n", n)
				return nil
			})
		},
	}
}

func newDigestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Print today's digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, app, func(r *service.ReminderService) error {
				text, err := r.DailySummary(cmd.Context(), timeNow())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}
