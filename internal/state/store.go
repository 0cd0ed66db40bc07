package state

import (
	"errors"

	"mailbox-monitor-go/internal/models"
)

// ErrTerminalOverwrite is returned when a write would replace a terminal
// processing record. A message that was reassigned, skipped, or finally
// failed must never be acted on again; hitting this error means the
// deduplication check upstream was bypassed, so callers abort the cycle.
var ErrTerminalOverwrite = errors.New("terminal processing record cannot be overwritten")

// Store tracks the processing outcome per mailbox message. Implementations
// enforce the terminal-record invariant: at most one record per message id,
// and once a record is terminal it is immutable.
type Store interface {
	// Get returns the record for a message id, or nil when none exists.
	Get(messageID string) (*models.ProcessingRecord, error)

	// HasTerminalRecord reports whether the message is done for good.
	HasTerminalRecord(messageID string) (bool, error)

	// Attempts returns how many times the message has been processed.
	Attempts(messageID string) (int, error)

	// RecordReassigned writes a terminal reassigned record.
	RecordReassigned(messageID, assignee string) error

	// RecordSkipped writes a terminal skipped record.
	RecordSkipped(messageID string, reason models.SkipReason) error

	// RecordFailure increments the attempt count and marks the record final
	// once the attempt cap is reached. It reports whether the failure was
	// final.
	RecordFailure(messageID string, cause error) (bool, error)

	// PendingRetries counts failed records that have attempts left.
	PendingRetries() (int, error)

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]models.ProcessingRecord, error)
}
