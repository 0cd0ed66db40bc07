package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"mailbox-monitor-go/internal/decision"
	"mailbox-monitor-go/internal/mailbox"
	"mailbox-monitor-go/internal/metrics"
	"mailbox-monitor-go/internal/models"
	"mailbox-monitor-go/internal/notification"
	"mailbox-monitor-go/internal/state"
	"mailbox-monitor-go/internal/tracker"
)

// Predictor asks the prediction service for an assignee recommendation.
type Predictor interface {
	PredictAssignee(ctx context.Context, n *models.IssueNotification) (*models.Recommendation, error)
}

// Reassigner runs the tracker-side reassignment workflow.
type Reassigner interface {
	Reassign(ctx context.Context, issueURL, newAssignee, reasoning string) (*tracker.ReassignResult, error)
}

type itemOutcome int

const (
	itemDeduped itemOutcome = iota
	itemReassigned
	itemSkipped
	itemFailed
)

// Monitor runs the scan, predict, decide, act pipeline over the mailbox.
type Monitor struct {
	reader     mailbox.Reader
	parser     *notification.Parser
	predictor  Predictor
	reassigner Reassigner
	engine     *decision.Engine
	store      state.Store
	metrics    *metrics.Metrics
	limiter    *rate.Limiter

	// runMu serializes cycles so at most one is active.
	runMu sync.Mutex
}

// NewMonitor creates the processing pipeline. messagesPerSecond paces the
// per-message work so bursts of notifications do not hammer the downstream
// APIs.
func NewMonitor(reader mailbox.Reader, parser *notification.Parser, predictor Predictor, reassigner Reassigner, engine *decision.Engine, store state.Store, m *metrics.Metrics, messagesPerSecond float64) *Monitor {
	return &Monitor{
		reader:     reader,
		parser:     parser,
		predictor:  predictor,
		reassigner: reassigner,
		engine:     engine,
		store:      store,
		metrics:    m,
		limiter:    rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
	}
}

// RunCycle performs one pass over the mailbox: list unread notifications,
// process each one, and commit the outcome. A mailbox listing error aborts
// the cycle; a single message failing does not. The one exception is a
// terminal record overwrite, which means state and mailbox disagree, so the
// cycle stops rather than risk acting twice.
func (m *Monitor) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	report := &models.CycleReport{CycleID: uuid.New(), StartedAt: time.Now()}
	log := logrus.WithField("cycle_id", report.CycleID)

	m.metrics.CycleCount.Inc()
	log.Info("Starting mailbox scan cycle")

	messages, err := m.reader.ListUnseen(ctx)
	if err != nil {
		m.metrics.CycleFailures.Inc()
		report.Duration = time.Since(report.StartedAt)
		return report, fmt.Errorf("failed to list mailbox: %w", err)
	}
	report.Fetched = len(messages)
	m.metrics.MessagesFetched.Add(float64(len(messages)))

	for _, msg := range messages {
		// Shutdown requests take effect between messages, never mid-message.
		if err := m.limiter.Wait(ctx); err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, err
		}

		outcome, err := m.processMessage(ctx, msg)
		if err != nil {
			if errors.Is(err, state.ErrTerminalOverwrite) {
				m.metrics.CycleFailures.Inc()
				report.Duration = time.Since(report.StartedAt)
				return report, err
			}
			log.Errorf("Failed to process message %s: %v", msg.ID, err)
			report.Failed++
			continue
		}

		switch outcome {
		case itemDeduped:
			report.Deduped++
		case itemReassigned:
			report.Reassigned++
		case itemSkipped:
			report.Skipped++
		case itemFailed:
			report.Failed++
		}
	}

	if pending, err := m.store.PendingRetries(); err == nil {
		m.metrics.PendingRetries.Set(float64(pending))
	}

	report.Duration = time.Since(report.StartedAt)
	m.metrics.CycleDuration.Observe(report.Duration.Seconds())
	log.Infof("Cycle completed in %v: fetched=%d deduped=%d reassigned=%d skipped=%d failed=%d",
		report.Duration, report.Fetched, report.Deduped, report.Reassigned, report.Skipped, report.Failed)
	return report, nil
}

// processMessage runs one message through parse, predict, decide, act. The
// returned error is nil for every outcome the store has recorded; a non-nil
// error means nothing terminal was written and the message stays eligible.
func (m *Monitor) processMessage(ctx context.Context, msg models.RawMessage) (itemOutcome, error) {
	terminal, err := m.store.HasTerminalRecord(msg.ID)
	if err != nil {
		return itemFailed, err
	}
	if terminal {
		// Already settled; the earlier mark may not have stuck.
		logrus.Debugf("Message %s already has a terminal record, skipping", msg.ID)
		m.metrics.MessagesDeduped.Inc()
		m.ack(ctx, msg)
		return itemDeduped, nil
	}

	n, err := m.parser.Parse(msg)
	if err != nil {
		var parseErr *notification.ParseError
		if errors.As(err, &parseErr) {
			logrus.Debugf("Message %s not actionable: %v", msg.ID, parseErr)
			return m.commitSkip(ctx, msg, models.SkipNotApplicable)
		}
		return m.commitFailure(ctx, msg, err)
	}

	rec, err := m.predictor.PredictAssignee(ctx, n)
	if err != nil {
		return m.commitFailure(ctx, msg, err)
	}

	d := m.engine.Decide(n, rec)
	if d.Action == models.ActionSkip {
		if d.Reason == models.SkipDryRun {
			logrus.Infof("[DRY RUN] Would reassign issue #%d in %s to %s", n.IssueIID, n.Project, d.Target)
		}
		return m.commitSkip(ctx, msg, d.Reason)
	}

	result, err := m.reassigner.Reassign(ctx, n.IssueURL, d.Target, rec.Reasoning)
	if err != nil {
		return m.commitFailure(ctx, msg, err)
	}
	if result.AlreadyAssigned {
		return m.commitSkip(ctx, msg, models.SkipAlreadyAssigned)
	}

	if err := m.store.RecordReassigned(msg.ID, d.Target); err != nil {
		// The tracker action went through but the record did not. Leave the
		// message unread; the next attempt short-circuits on the tracker side.
		return itemFailed, err
	}
	m.metrics.Reassignments.Inc()
	m.ack(ctx, msg)
	return itemReassigned, nil
}

// commitSkip writes a terminal skipped record and acknowledges the message.
func (m *Monitor) commitSkip(ctx context.Context, msg models.RawMessage, reason models.SkipReason) (itemOutcome, error) {
	if err := m.store.RecordSkipped(msg.ID, reason); err != nil {
		return itemFailed, err
	}
	m.metrics.Skips.WithLabelValues(string(reason)).Inc()
	m.ack(ctx, msg)
	return itemSkipped, nil
}

// commitFailure records a failed attempt. Retryable failures leave the
// message unread so a later cycle picks it up again; once the attempt cap is
// reached the message is acknowledged and never retried.
func (m *Monitor) commitFailure(ctx context.Context, msg models.RawMessage, cause error) (itemOutcome, error) {
	final, err := m.store.RecordFailure(msg.ID, cause)
	if err != nil {
		return itemFailed, err
	}
	m.metrics.Failures.Inc()

	if final {
		logrus.Errorf("Message %s failed permanently: %v", msg.ID, cause)
		m.ack(ctx, msg)
	} else {
		logrus.Warnf("Message %s failed, will retry next cycle: %v", msg.ID, cause)
	}
	return itemFailed, nil
}

// ack marks the message read. Failing to mark is not fatal: the terminal
// record already guards against double processing.
func (m *Monitor) ack(ctx context.Context, msg models.RawMessage) {
	if err := m.reader.MarkProcessed(ctx, msg); err != nil {
		logrus.Warnf("Failed to mark message %s as read: %v", msg.ID, err)
	}
}
