package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notesd/internal/daemon"
	"notesd/internal/journal"
	"notesd/internal/logging"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}

			d, err := daemon.New(cfg, store, logger)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "notesd listening on %s\n", d.Addr())
			<-ctx.Done()
			logger.Info("notesd shutting down")
			return nil
		},
	}
}
