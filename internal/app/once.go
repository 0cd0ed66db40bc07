package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single processing cycle and exit",
	Long: "Scans the mailbox once, processes every pending notification, and " +
		"exits. Useful for cron-driven deployments and for testing a new " +
		"configuration with --dry-run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		c, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := c.Monitor.RunCycle(ctx)
		if err != nil {
			return err
		}

		logrus.Infof("Single cycle finished: fetched=%d deduped=%d reassigned=%d skipped=%d failed=%d",
			report.Fetched, report.Deduped, report.Reassigned, report.Skipped, report.Failed)
		return nil
	},
}
