package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mailbox-monitor-go/internal/health"
	"mailbox-monitor-go/internal/mailbox"
	"mailbox-monitor-go/internal/prediction"
	"mailbox-monitor-go/internal/tracker"
)

// brokenPinger stands in for a dependency whose client could not even be
// constructed, so the probe reports the construction error.
type brokenPinger struct {
	err error
}

func (p brokenPinger) Ping(ctx context.Context) error { return p.err }

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the mailbox, prediction service, and tracker",
	Long: "Checks that all three dependencies are reachable and exits " +
		"non-zero when any of them is down, for use in readiness scripts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var mailboxProbe health.Pinger
		reader, err := mailbox.New(&cfg.Mailbox)
		if err != nil {
			mailboxProbe = brokenPinger{err: err}
		} else {
			mailboxProbe = reader
			defer reader.Close()
		}

		checker := health.NewChecker(mailboxProbe,
			prediction.NewClient(&cfg.Prediction),
			tracker.NewClient(&cfg.Tracker), nil)
		report := checker.Check(cmd.Context())

		fmt.Printf("mailbox:    %s\n", status(report.Mailbox))
		fmt.Printf("prediction: %s\n", status(report.Prediction))
		fmt.Printf("tracker:    %s\n", status(report.Tracker))

		if !report.Overall {
			return &exitError{code: ExitUnhealthy, err: errors.New("one or more dependencies are unreachable")}
		}
		return nil
	},
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "down"
}
