package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/db"
	"mailbox-monitor-go/internal/decision"
	"mailbox-monitor-go/internal/handlers"
	"mailbox-monitor-go/internal/health"
	"mailbox-monitor-go/internal/mailbox"
	"mailbox-monitor-go/internal/metrics"
	"mailbox-monitor-go/internal/monitor"
	"mailbox-monitor-go/internal/notification"
	"mailbox-monitor-go/internal/prediction"
	"mailbox-monitor-go/internal/server"
	"mailbox-monitor-go/internal/state"
	"mailbox-monitor-go/internal/tracker"
)

// components holds the wired application services.
type components struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	Store     state.Store
	Reader    mailbox.Reader
	Predictor *prediction.Client
	Tracker   *tracker.Client
	Monitor   *monitor.Monitor
	Scheduler *monitor.Scheduler
	Checker   *health.Checker

	closeDB func() error
}

// buildComponents wires the processing pipeline from the configuration.
// Without a configured database host the processing records are kept in
// memory, which is enough for a single instance that relies on the mailbox
// read flags for restart recovery.
func buildComponents(cfg *config.Config) (*components, error) {
	m := metrics.NewMetrics()

	var store state.Store
	var closeDB func() error
	if cfg.Database.Host != "" {
		conn, err := db.Init(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store = state.NewGormStore(conn, cfg.Monitor.MaxAttempts)
		if sqlDB, err := conn.DB(); err == nil {
			closeDB = sqlDB.Close
		}
	} else {
		logrus.Info("No database configured, keeping processing records in memory")
		store = state.NewMemoryStore(cfg.Monitor.MaxAttempts)
	}

	reader, err := mailbox.New(&cfg.Mailbox)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox reader: %w", err)
	}

	predictor := prediction.NewClient(&cfg.Prediction)
	trackerClient := tracker.NewClient(&cfg.Tracker)
	engine := decision.NewEngine(cfg.Monitor.MinConfidence, cfg.Monitor.DryRun)

	if cfg.Monitor.DryRun {
		logrus.Info("Dry run enabled, no issues will be reassigned")
	}

	mon := monitor.NewMonitor(reader, notification.NewParser(), predictor, trackerClient,
		engine, store, m, cfg.Monitor.MessagesPerSecond)

	return &components{
		Config:    cfg,
		Metrics:   m,
		Store:     store,
		Reader:    reader,
		Predictor: predictor,
		Tracker:   trackerClient,
		Monitor:   mon,
		Scheduler: monitor.NewScheduler(cfg.Monitor.CheckInterval(), mon),
		Checker:   health.NewChecker(reader, predictor, trackerClient, m),
		closeDB:   closeDB,
	}, nil
}

// Router builds the HTTP API over the wired components.
func (c *components) Router() *gin.Engine {
	h := handlers.NewHandlers(c.Checker, c.Store, c.Scheduler, c.Predictor)
	return server.SetupRouter(h)
}

// Close releases the mailbox connection and the database handle.
func (c *components) Close() {
	if err := c.Reader.Close(); err != nil {
		logrus.Errorf("Failed to close mailbox reader: %v", err)
	}
	if c.closeDB != nil {
		if err := c.closeDB(); err != nil {
			logrus.Errorf("Failed to close database: %v", err)
		}
	}
}
