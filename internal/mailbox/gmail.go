package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/models"
)

// GmailReader implements Reader using the Gmail API. Unread state is
// tracked through the UNREAD label instead of IMAP flags.
type GmailReader struct {
	service      *gmail.Service
	userEmail    string
	senderFilter string
}

// NewGmailReader creates a Gmail API reader from OAuth2 credentials. The
// modify scope is needed to clear the UNREAD label after processing.
func NewGmailReader(cfg *config.MailboxConfig) (*GmailReader, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	userEmail := cfg.UserEmail
	if userEmail == "" {
		userEmail = "me"
	}

	return &GmailReader{
		service:      service,
		userEmail:    userEmail,
		senderFilter: cfg.SenderFilter,
	}, nil
}

// ListUnseen returns the unread messages matching the sender filter.
func (r *GmailReader) ListUnseen(ctx context.Context) ([]models.RawMessage, error) {
	query := "is:unread"
	if r.senderFilter != "" {
		query += " from:" + r.senderFilter
	}

	response, err := r.service.Users.Messages.List(r.userEmail).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var result []models.RawMessage
	for _, msg := range response.Messages {
		full, err := r.service.Users.Messages.Get(r.userEmail, msg.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", msg.Id, err)
			continue
		}

		raw, err := base64.URLEncoding.DecodeString(full.Raw)
		if err != nil {
			logrus.Warnf("Failed to decode message %s: %v", msg.Id, err)
			continue
		}

		result = append(result, models.RawMessage{
			ID:  msg.Id,
			Raw: raw,
		})
	}
	return result, nil
}

// MarkProcessed removes the UNREAD label from the message.
func (r *GmailReader) MarkProcessed(ctx context.Context, msg models.RawMessage) error {
	request := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}
	if _, err := r.service.Users.Messages.Modify(r.userEmail, msg.ID, request).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", msg.ID, err)
	}
	return nil
}

// Ping verifies the Gmail account is reachable.
func (r *GmailReader) Ping(ctx context.Context) error {
	if _, err := r.service.Users.GetProfile(r.userEmail).Context(ctx).Do(); err != nil {
		return fmt.Errorf("Gmail profile check failed: %w", err)
	}
	return nil
}

// Close closes the Gmail reader
func (r *GmailReader) Close() error {
	// The Gmail API service doesn't need explicit closing.
	return nil
}
