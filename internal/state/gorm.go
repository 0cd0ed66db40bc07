package state

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"mailbox-monitor-go/internal/models"
)

// GormStore persists processing records in the database.
type GormStore struct {
	db          *gorm.DB
	maxAttempts int
}

// NewGormStore creates a database-backed store. maxAttempts is the failure
// cap after which a record becomes final.
func NewGormStore(db *gorm.DB, maxAttempts int) *GormStore {
	return &GormStore{db: db, maxAttempts: maxAttempts}
}

func (s *GormStore) Get(messageID string) (*models.ProcessingRecord, error) {
	var record models.ProcessingRecord
	result := s.db.Where("message_id = ?", messageID).First(&record)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error reading record: %w", result.Error)
	}
	return &record, nil
}

func (s *GormStore) HasTerminalRecord(messageID string) (bool, error) {
	record, err := s.Get(messageID)
	if err != nil {
		return false, err
	}
	return record != nil && record.Terminal(), nil
}

func (s *GormStore) Attempts(messageID string) (int, error) {
	record, err := s.Get(messageID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return record.Attempts, nil
}

func (s *GormStore) RecordReassigned(messageID, assignee string) error {
	return s.recordTerminal(messageID, models.OutcomeReassigned, "", assignee)
}

func (s *GormStore) RecordSkipped(messageID string, reason models.SkipReason) error {
	return s.recordTerminal(messageID, models.OutcomeSkipped, reason, "")
}

func (s *GormStore) recordTerminal(messageID string, outcome models.Outcome, reason models.SkipReason, assignee string) error {
	record, err := s.Get(messageID)
	if err != nil {
		return err
	}

	if record == nil {
		record = &models.ProcessingRecord{
			MessageID:   messageID,
			Outcome:     outcome,
			Reason:      string(reason),
			Assignee:    assignee,
			Attempts:    1,
			ProcessedAt: time.Now(),
		}
		if result := s.db.Create(record); result.Error != nil {
			return fmt.Errorf("failed to create processing record: %w", result.Error)
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
	if result := s.db.Save(record); result.Error != nil {
		return fmt.Errorf("failed to update processing record: %w", result.Error)
	}
	return nil
}

func (s *GormStore) RecordFailure(messageID string, cause error) (bool, error) {
	record, err := s.Get(messageID)
	if err != nil {
		return false, err
	}

	if record == nil {
		record = &models.ProcessingRecord{
			MessageID:   messageID,
			Outcome:     models.OutcomeFailed,
			Attempts:    1,
			LastError:   cause.Error(),
			ProcessedAt: time.Now(),
		}
		record.Final = record.Attempts >= s.maxAttempts
		if result := s.db.Create(record); result.Error != nil {
			return false, fmt.Errorf("failed to create processing record: %w", result.Error)
		}
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
	if result := s.db.Save(record); result.Error != nil {
		return false, fmt.Errorf("failed to update processing record: %w", result.Error)
	}
	return record.Final, nil
}

func (s *GormStore) PendingRetries() (int, error) {
	var count int64
	result := s.db.Model(&models.ProcessingRecord{}).
		Where("outcome = ? AND final = ?", models.OutcomeFailed, false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count pending retries: %w", result.Error)
	}
	return int(count), nil
}

func (s *GormStore) Recent(limit int) ([]models.ProcessingRecord, error) {
	var records []models.ProcessingRecord
	result := s.db.Order("processed_at DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get recent records: %w", result.Error)
	}
	return records, nil
}
