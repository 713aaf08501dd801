package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrlight/shopbot/internal/botclient"
	"github.com/hrlight/shopbot/internal/config"
)

func newSheetsCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Inspect and refresh the knowledge mirror of a running server",
	}
	cmd.PersistentFlags().IntVar(&timeoutSec, "timeout-sec", 60, "request timeout in seconds")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mirrored sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			client := botclient.New(cfg.BotAPIURL, time.Duration(timeoutSec)*time.Second)

			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()
			sheets, err := client.ListSheets(ctx)
			if err != nil {
				return err
			}
			if sheets.Count == 0 {
				cmd.Println("(no sheets mirrored)")
				return nil
			}
			for _, sheet := range sheets.Sheets {
				cmd.Println(sheet)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Trigger an immediate mirror refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			client := botclient.New(cfg.BotAPIURL, time.Duration(timeoutSec)*time.Second)

			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()
			if err := client.SyncSheets(ctx); err != nil {
				return err
			}
			cmd.Println("synced")
			return nil
		},
	})

	return cmd
}
