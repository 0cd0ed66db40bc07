package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/metrics"
	"mailbox-monitor-go/internal/models"
)

const probeTimeout = 10 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the mailbox, the prediction service, and the tracker.
type Checker struct {
	mailbox    Pinger
	prediction Pinger
	tracker    Pinger
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// NewChecker creates a health checker over the three dependencies.
func NewChecker(mailbox, prediction, tracker Pinger, m *metrics.Metrics) *Checker {
	return &Checker{
		mailbox:    mailbox,
		prediction: prediction,
		tracker:    tracker,
		timeout:    probeTimeout,
		metrics:    m,
	}
}

// Check probes all dependencies concurrently, each with its own timeout, and
// aggregates the results. A probe that errors or times out counts as down.
func (c *Checker) Check(ctx context.Context) models.HealthReport {
	report := models.HealthReport{CheckedAt: time.Now()}

	probe := func(name string, p Pinger, ok *bool, wg *sync.WaitGroup) {
		defer wg.Done()
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if err := p.Ping(probeCtx); err != nil {
			logrus.Warnf("Health check for %s failed: %v", name, err)
			return
		}
		*ok = true
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go probe("mailbox", c.mailbox, &report.Mailbox, &wg)
	go probe("prediction service", c.prediction, &report.Prediction, &wg)
	go probe("tracker", c.tracker, &report.Tracker, &wg)
	wg.Wait()

	report.Overall = report.Mailbox && report.Prediction && report.Tracker

	if c.metrics != nil {
		if report.Overall {
			c.metrics.LastHealthy.Set(1)
		} else {
			c.metrics.LastHealthy.Set(0)
		}
	}
	return report
}
