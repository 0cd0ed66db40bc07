package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		backend := "IMAP"
		if cfg.Mailbox.UseGmailAPI {
			backend = "Gmail API"
		}
		storage := "in-memory"
		if cfg.Database.Host != "" {
			storage = "mysql"
		}

		fmt.Println("Configuration OK")
		fmt.Printf("  mailbox backend:  %s\n", backend)
		fmt.Printf("  record storage:   %s\n", storage)
		fmt.Printf("  check interval:   %s\n", cfg.Monitor.CheckInterval())
		fmt.Printf("  min confidence:   %.2f\n", cfg.Monitor.MinConfidence)
		fmt.Printf("  max attempts:     %d\n", cfg.Monitor.MaxAttempts)
		fmt.Printf("  dry run:          %t\n", cfg.Monitor.DryRun)
		return nil
	},
}
