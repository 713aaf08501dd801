// Package cli defines the shopbot command tree.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrlight/shopbot/internal/app"
	"github.com/hrlight/shopbot/internal/config"
	"github.com/hrlight/shopbot/internal/tui"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "shopbot",
		Short: "Shopbot is a LINE customer-service bot for a car lamp shop",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newChatCommand(logger))
	root.AddCommand(newConsoleCommand(logger))
	root.AddCommand(newSheetsCommand(logger))
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, sheet sync and watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newConsoleCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the full-screen chat console against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(config.FromEnv(), logger)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
