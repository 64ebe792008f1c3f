package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tickerbrief/internal/config"
	"tickerbrief/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the summarization worker without the API server",
	Long: `Run the summarization worker without the API server.

By default the worker polls for jobs until interrupted. With --once it
drains the pending queue and exits, which suits cron-style scheduling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		return runWorker(once)
	},
}

func init() {
	workerCmd.Flags().Bool("once", false, "drain the pending queue and exit")
}

func runWorker(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	runner, err := buildRunner(ctx, cfg, store)
	if err != nil {
		return err
	}

	if once {
		for {
			processed, err := runner.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			if !processed {
				return nil
			}
		}
	}

	runner.Run(ctx)
	return nil
}
