package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/models"
)

// Scheduler drives the monitor on a fixed interval.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	interval  time.Duration
	monitor   *Monitor
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(interval time.Duration, monitor *Monitor) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		interval: interval,
		monitor:  monitor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A previous Stop leaves the context cancelled and the entry behind;
	// reset both so restarts behave like a fresh start.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	schedule := fmt.Sprintf("@every %s", s.interval)
	entryID, err := s.cron.AddFunc(schedule, s.runCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %v", s.interval)
	return nil
}

// Stop stops the scheduler and cancels the running cycle, if any.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	// Stop the cron scheduler
	ctx := s.cron.Stop()

	// Wait for all jobs to complete
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runCycle is the cron entry point.
func (s *Scheduler) runCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	if _, err := s.monitor.RunCycle(s.ctx); err != nil {
		logrus.Errorf("Processing cycle failed: %v", err)
	}
}

// RunNow triggers a cycle outside the schedule (for manual triggering).
func (s *Scheduler) RunNow() (*models.CycleReport, error) {
	logrus.Info("Running processing cycle on demand")
	return s.monitor.RunCycle(s.ctx)
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for in-flight cycles to finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
