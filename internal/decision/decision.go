package decision

import (
	"strings"

	"mailbox-monitor-go/internal/models"
)

// Engine applies the confidence gate and idempotency rules that turn a
// recommendation into an action.
type Engine struct {
	minConfidence float64
	dryRun        bool
}

// NewEngine creates a decision engine
func NewEngine(minConfidence float64, dryRun bool) *Engine {
	return &Engine{minConfidence: minConfidence, dryRun: dryRun}
}

// Decide returns what to do with a notification given the prediction.
// A confidence exactly at the threshold passes the gate. In dry-run mode a
// would-be reassignment is reported as a skip with the target preserved.
func (e *Engine) Decide(n *models.IssueNotification, rec *models.Recommendation) models.Decision {
	if rec == nil || strings.TrimSpace(rec.Assignee) == "" {
		return models.Decision{Action: models.ActionSkip, Reason: models.SkipNotApplicable}
	}

	if rec.Confidence < e.minConfidence {
		return models.Decision{Action: models.ActionSkip, Reason: models.SkipLowConfidence}
	}

	if n.CurrentAssignee != "" && strings.EqualFold(rec.Assignee, n.CurrentAssignee) {
		return models.Decision{Action: models.ActionSkip, Reason: models.SkipAlreadyAssigned}
	}

	if e.dryRun {
		return models.Decision{Action: models.ActionSkip, Reason: models.SkipDryRun, Target: rec.Assignee}
	}

	return models.Decision{Action: models.ActionReassign, Target: rec.Assignee}
}
