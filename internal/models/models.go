package models

import (
	"time"

	"github.com/google/uuid"
)

// RawMessage is a message fetched from the mailbox, untouched.
// ID is the stable mailbox identifier used for deduplication: the Message-ID
// header when present, otherwise a uid:<uidvalidity>/<uid> fallback for IMAP
// or the provider message id for Gmail. UID carries the IMAP UID for flag
// updates and is zero for non-IMAP readers.
type RawMessage struct {
	ID  string
	UID uint32
	Raw []byte
}

// IssueNotification is the structured form of a GitLab assignment
// notification email. CurrentAssignee is empty when the issue is unassigned.
type IssueNotification struct {
	Project         string   `json:"project"`
	IssueIID        int      `json:"issue_iid"`
	IssueURL        string   `json:"issue_url"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Labels          []string `json:"labels"`
	CurrentAssignee string   `json:"current_assignee"`
	SourceMessageID string   `json:"source_message_id"`
}

// Recommendation is the prediction service's suggested assignee for an issue.
type Recommendation struct {
	Assignee     string   `json:"assignee"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"`
}

// DecisionAction says what the pipeline should do with a notification.
type DecisionAction string

const (
	ActionReassign DecisionAction = "reassign"
	ActionSkip     DecisionAction = "skip"
)

// SkipReason explains why a notification was skipped without a reassignment.
type SkipReason string

const (
	SkipLowConfidence   SkipReason = "low_confidence"
	SkipAlreadyAssigned SkipReason = "already_assigned"
	SkipDryRun          SkipReason = "dry_run"
	SkipNotApplicable   SkipReason = "not_applicable"
)

// Decision is the outcome of the decision engine for one notification.
// Target is set when Action is ActionReassign; Reason when Action is ActionSkip.
type Decision struct {
	Action DecisionAction `json:"action"`
	Target string         `json:"target,omitempty"`
	Reason SkipReason     `json:"reason,omitempty"`
}

// Outcome is the terminal classification of a processed message.
type Outcome string

const (
	OutcomeReassigned Outcome = "reassigned"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// ProcessingRecord stores how a message was handled so repeated polls never
// re-trigger an action. At most one record exists per message id; a record
// with a reassigned or skipped outcome (or a failed one marked Final) is
// terminal and must never be overwritten.
type ProcessingRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Outcome     Outcome   `json:"outcome" gorm:"type:varchar(32);not null"`
	Reason      string    `json:"reason,omitempty" gorm:"type:varchar(64)"`
	Assignee    string    `json:"assignee,omitempty" gorm:"type:varchar(255)"`
	Attempts    int       `json:"attempts" gorm:"not null;default:0"`
	Final       bool      `json:"final" gorm:"not null;default:false"`
	LastError   string    `json:"last_error,omitempty" gorm:"type:text"`
	ProcessedAt time.Time `json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for ProcessingRecord
func (ProcessingRecord) TableName() string {
	return "processing_records"
}

// Terminal reports whether the record will never be processed again.
func (r *ProcessingRecord) Terminal() bool {
	switch r.Outcome {
	case OutcomeReassigned, OutcomeSkipped:
		return true
	case OutcomeFailed:
		return r.Final
	}
	return false
}

// CycleReport summarizes one pass over the mailbox.
type CycleReport struct {
	CycleID    uuid.UUID     `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Fetched    int           `json:"fetched"`
	Deduped    int           `json:"deduped"`
	Reassigned int           `json:"reassigned"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
}

// HealthReport is the aggregated result of probing the three dependencies.
// Overall is the logical AND of the individual probes.
type HealthReport struct {
	Mailbox    bool      `json:"mailbox"`
	Prediction bool      `json:"prediction"`
	Tracker    bool      `json:"tracker"`
	Overall    bool      `json:"overall"`
	CheckedAt  time.Time `json:"checked_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
