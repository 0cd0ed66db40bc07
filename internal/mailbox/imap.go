package mailbox

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/models"
)

// IMAPReader implements Reader over an IMAP connection.
type IMAPReader struct {
	client       *client.Client
	addr         string
	username     string
	password     string
	folder       string
	senderFilter string
	uidValidity  uint32
}

// NewIMAPReader connects and logs in to the IMAP server.
func NewIMAPReader(cfg *config.MailboxConfig) (*IMAPReader, error) {
	r := &IMAPReader{
		addr:         fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort),
		username:     cfg.Username,
		password:     cfg.Password,
		folder:       cfg.Folder,
		senderFilter: cfg.SenderFilter,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	logrus.Infof("Connected to IMAP server %s", cfg.IMAPHost)
	return r, nil
}

func (r *IMAPReader) connect() error {
	c, err := client.DialTLS(r.addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if err := c.Login(r.username, r.password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	r.client = c
	return nil
}

func (r *IMAPReader) reconnect() error {
	if r.client != nil {
		r.client.Logout()
		r.client = nil
	}
	return r.connect()
}

// ListUnseen fetches the unread messages in the configured folder, filtered
// by sender. The messages keep their unread flag.
func (r *IMAPReader) ListUnseen(ctx context.Context) ([]models.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mbox, err := r.client.Select(r.folder, false)
	if err != nil {
		// Long-lived connections get dropped by the server; retry once
		// on a fresh connection.
		logrus.Warnf("IMAP select failed, reconnecting: %v", err)
		if err := r.reconnect(); err != nil {
			return nil, err
		}
		mbox, err = r.client.Select(r.folder, false)
		if err != nil {
			return nil, fmt.Errorf("failed to select %s: %w", r.folder, err)
		}
	}
	r.uidValidity = mbox.UidValidity

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if r.senderFilter != "" {
		criteria.Header.Add("From", r.senderFilter)
	}

	uids, err := r.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- r.client.UidFetch(seqset, items, messages)
	}()

	var result []models.RawMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			logrus.Warnf("Message %d has no body section", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			logrus.Warnf("Failed to read message %d: %v", msg.Uid, err)
			continue
		}
		result = append(result, models.RawMessage{
			ID:  r.messageID(msg),
			UID: msg.Uid,
			Raw: raw,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return result, nil
}

// messageID derives a stable identifier for deduplication: the Message-ID
// header when the server reports one, otherwise the UID qualified by the
// mailbox UIDVALIDITY.
func (r *IMAPReader) messageID(msg *imap.Message) string {
	if msg.Envelope != nil {
		if id := strings.Trim(msg.Envelope.MessageId, "<>"); id != "" {
			return id
		}
	}
	return fmt.Sprintf("uid:%d/%d", r.uidValidity, msg.Uid)
}

// MarkProcessed sets the \Seen flag on the message.
func (r *IMAPReader) MarkProcessed(ctx context.Context, msg models.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(msg.UID)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := r.client.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", msg.ID, err)
	}
	return nil
}

// Ping checks the connection, reconnecting if the server dropped it.
func (r *IMAPReader) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.client.Noop(); err != nil {
		if err := r.reconnect(); err != nil {
			return fmt.Errorf("IMAP connection is down: %w", err)
		}
	}
	return nil
}

// Close logs out from the IMAP server.
func (r *IMAPReader) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Logout()
}
