package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mailbox-monitor-go/internal/config"
)

// Exit codes reported by the CLI.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitConfigError = 2
	ExitUnhealthy   = 3
)

// exitError carries a specific process exit code up to Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var dryRunFlag bool

var rootCmd = &cobra.Command{
	Use:   "mailbox-monitor",
	Short: "GitLab issue assignment monitor",
	Long: "Watches a mailbox for GitLab issue assignment notifications, asks the " +
		"prediction service for the best assignee, and reassigns issues when the " +
		"recommendation is confident enough.\n\n" +
		"Exit codes: 0 success, 1 runtime error, 2 invalid configuration, " +
		"3 dependency unreachable.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runService,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "log intended reassignments without performing them")
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

// runService is the default mode: scan the mailbox on the configured
// interval and serve the HTTP API until interrupted.
func runService(cmd *cobra.Command, args []string) error {
	logrus.Info("Starting Mailbox Monitor Service")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	router := c.Router()
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := c.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Scheduler.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	c.Scheduler.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// loadConfig loads and validates the configuration; failures map to the
// configuration exit code.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: fmt.Errorf("failed to load configuration: %w", err)}
	}
	if dryRunFlag {
		cfg.Monitor.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: ExitConfigError, err: fmt.Errorf("configuration validation failed: %w", err)}
	}
	configureLogging(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func configureLogging(level, format string) {
	if format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// Execute runs the CLI and exits the process with the command's exit code.
func Execute() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	code := ExitOK
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		code = ExitRuntime
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
	}
	os.Exit(code)
}
