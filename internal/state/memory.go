package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"mailbox-monitor-go/internal/models"
)

// MemoryStore keeps processing records in memory. It backs deployments that
// run without a database and the tests; records do not survive a restart,
// so deduplication then rests on the mailbox read flags alone.
type MemoryStore struct {
	mu          sync.Mutex
	records     map[string]*models.ProcessingRecord
	maxAttempts int
	nextID      uint
}

// NewMemoryStore creates an in-memory store with the given failure cap.
func NewMemoryStore(maxAttempts int) *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]*models.ProcessingRecord),
		maxAttempts: maxAttempts,
		nextID:      1,
	}
}

func (s *MemoryStore) Get(messageID string) (*models.ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[messageID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) HasTerminalRecord(messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[messageID]
	return ok && record.Terminal(), nil
}

func (s *MemoryStore) Attempts(messageID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[messageID]
	if !ok {
		return 0, nil
	}
	return record.Attempts, nil
}

func (s *MemoryStore) RecordReassigned(messageID, assignee string) error {
	return s.recordTerminal(messageID, models.OutcomeReassigned, "", assignee)
}

func (s *MemoryStore) RecordSkipped(messageID string, reason models.SkipReason) error {
	return s.recordTerminal(messageID, models.OutcomeSkipped, reason, "")
}

func (s *MemoryStore) recordTerminal(messageID string, outcome models.Outcome, reason models.SkipReason, assignee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[messageID]
	if !ok {
		s.records[messageID] = &models.ProcessingRecord{
			ID:          s.allocID(),
			MessageID:   messageID,
			Outcome:     outcome,
			Reason:      string(reason),
			Assignee:    assignee,
			Attempts:    1,
			ProcessedAt: time.Now(),
		}
		return nil
	}

	if record.Terminal() {
		return fmt.Errorf("%w: message %s already %s", ErrTerminalOverwrite, messageID, record.Outcome)
	}

	record.Outcome = outcome
	record.Reason = string(reason)
	record.Assignee = assignee
	record.LastError = ""
	record.Attempts++
	record.ProcessedAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordFailure(messageID string, cause error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[messageID]
	if !ok {
		record = &models.ProcessingRecord{
			ID:          s.allocID(),
			MessageID:   messageID,
			Outcome:     models.OutcomeFailed,
			Attempts:    1,
			LastError:   cause.Error(),
			ProcessedAt: time.Now(),
		}
		record.Final = record.Attempts >= s.maxAttempts
		s.records[messageID] = record
		return record.Final, nil
	}

	if record.Terminal() {
		return false, fmt.Errorf("%w: message %s already %s", ErrTerminalOverwrite, messageID, record.Outcome)
	}

	record.Outcome = models.OutcomeFailed
	record.LastError = cause.Error()
	record.Attempts++
	record.Final = record.Attempts >= s.maxAttempts
	record.ProcessedAt = time.Now()
	return record.Final, nil
}

func (s *MemoryStore) PendingRetries() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Outcome == models.OutcomeFailed && !record.Final {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Recent(limit int) ([]models.ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.ProcessingRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}
