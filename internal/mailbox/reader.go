package mailbox

import (
	"context"

	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/models"
)

// Reader provides access to the monitored mailbox. Messages stay listed by
// ListUnseen until MarkProcessed flags them, which is how unfinished work
// survives restarts.
type Reader interface {
	// ListUnseen returns the unread messages matching the sender filter.
	ListUnseen(ctx context.Context) ([]models.RawMessage, error)

	// MarkProcessed flags a message as read so later polls skip it.
	MarkProcessed(ctx context.Context, msg models.RawMessage) error

	// Ping verifies the mailbox is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// New creates the mailbox reader selected by the configuration.
func New(cfg *config.MailboxConfig) (Reader, error) {
	if cfg.UseGmailAPI {
		logrus.Info("Using Gmail API for mailbox access")
		return NewGmailReader(cfg)
	}
	logrus.Info("Using IMAP for mailbox access")
	return NewIMAPReader(cfg)
}
