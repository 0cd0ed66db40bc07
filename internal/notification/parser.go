package notification

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/models"
)

// ParseError reasons.
const (
	ReasonNotAssignment      = "not_an_assignment_notification"
	ReasonMalformedReference = "malformed_issue_reference"
)

// ParseError reports why a message could not be turned into an
// IssueNotification. Callers treat it as a skip, not a failure.
type ParseError struct {
	Reason string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

var (
	issueURLPattern = regexp.MustCompile(`https?://[^\s]+/(?:issues|merge_requests)/\d+`)
	issueNumPattern = regexp.MustCompile(`#(\d+)`)

	// Common GitLab subject formats:
	// "Issue #123: Title | Project"
	// "Title (#123) | Project"
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Issue #\d+:\s*(.+?)\s*\|`),
		regexp.MustCompile(`(.+?)\s*\(#\d+\)\s*\|`),
		regexp.MustCompile(`(.+?)\s*-\s*Issue #\d+`),
		regexp.MustCompile(`(.+?)\s*\|\s*`),
	}

	assigneePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)assigned to\s+@?([^\s\n]+)`),
		regexp.MustCompile(`(?i)assignee:\s*@?([^\s\n]+)`),
	}

	descriptionPattern = regexp.MustCompile(`(?is)(?:Description|Summary):\s*\n(.*?)(?:\n\n|\n---|\nAssignee)`)
	labelsPattern      = regexp.MustCompile(`(?i)Labels?:\s*([^\n]+)`)
	projectPattern     = regexp.MustCompile(`(?i)(?:Project|Repository):\s*([^\n]+)`)

	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	htmlBreakPattern = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/tr)>`)
)

const maxDescriptionLen = 500

// Parser turns raw mailbox messages into issue notifications
type Parser struct{}

// NewParser creates a new notification parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts an IssueNotification from a raw message. It returns a
// *ParseError when the message is not a GitLab assignment notification or
// carries no usable issue reference; any returned notification always has
// IssueURL and IssueIID set.
func (p *Parser) Parse(msg models.RawMessage) (*models.IssueNotification, error) {
	entity, err := message.Read(bytes.NewReader(msg.Raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, &ParseError{Reason: ReasonNotAssignment, Detail: fmt.Sprintf("unreadable message: %v", err)}
	}

	subject := headerText(entity, "Subject")
	sender := headerText(entity, "From")

	if !isAssignmentNotification(subject, sender) {
		logrus.Debugf("Message %s is not an assignment notification (subject: %q)", msg.ID, subject)
		return nil, &ParseError{Reason: ReasonNotAssignment}
	}

	body, err := extractBody(entity)
	if err != nil {
		return nil, &ParseError{Reason: ReasonNotAssignment, Detail: fmt.Sprintf("unreadable body: %v", err)}
	}
	if body == "" {
		return nil, &ParseError{Reason: ReasonMalformedReference, Detail: "empty body"}
	}

	issueURL := issueURLPattern.FindString(body)
	if issueURL == "" {
		return nil, &ParseError{Reason: ReasonMalformedReference, Detail: "no issue URL in body"}
	}

	iid, err := extractIID(subject, issueURL)
	if err != nil {
		return nil, &ParseError{Reason: ReasonMalformedReference, Detail: err.Error()}
	}

	notification := &models.IssueNotification{
		IssueURL:        issueURL,
		IssueIID:        iid,
		Title:           extractTitle(subject),
		Description:     extractDescription(body),
		Labels:          extractLabels(body),
		CurrentAssignee: extractAssignee(body),
		Project:         extractProject(body, issueURL),
		SourceMessageID: msg.ID,
	}

	logrus.Debugf("Parsed assignment notification for issue #%d (%s)", notification.IssueIID, notification.Project)
	return notification, nil
}

// isAssignmentNotification checks whether subject and sender look like a
// GitLab assignment notification.
func isAssignmentNotification(subject, sender string) bool {
	subjectLower := strings.ToLower(subject)
	return strings.Contains(strings.ToLower(sender), "gitlab") ||
		strings.Contains(subjectLower, "assigned you") ||
		strings.Contains(subjectLower, "assignee changed") ||
		strings.Contains(subjectLower, "was assigned to you")
}

// headerText returns a decoded header value, falling back to the raw value
// when the charset is unknown.
func headerText(entity *message.Entity, key string) string {
	if entity == nil {
		return ""
	}
	if v, err := entity.Header.Text(key); err == nil {
		return v
	}
	return entity.Header.Get(key)
}

// extractBody returns the message text, preferring text/plain parts and
// falling back to tag-stripped HTML.
func extractBody(entity *message.Entity) (string, error) {
	if entity == nil {
		return "", nil
	}

	var plain, htmlBody string

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			content, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read part body: %w", err)
			}

			contentType := part.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") && plain == "" {
				plain = string(content)
			} else if strings.Contains(contentType, "text/html") && htmlBody == "" {
				htmlBody = string(content)
			}
		}
	} else {
		content, err := io.ReadAll(entity.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read message body: %w", err)
		}

		contentType := entity.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/html") {
			htmlBody = string(content)
		} else {
			plain = string(content)
		}
	}

	if plain != "" {
		return normalizeNewlines(plain), nil
	}
	return normalizeNewlines(stripHTML(htmlBody)), nil
}

// normalizeNewlines converts CRLF endings so the line-anchored patterns match.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// stripHTML reduces an HTML body to plain text for regex matching.
func stripHTML(s string) string {
	s = htmlBreakPattern.ReplaceAllString(s, "\n")
	s = htmlTagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// extractIID takes the issue number from the subject when present, otherwise
// from the trailing path segment of the issue URL.
func extractIID(subject, issueURL string) (int, error) {
	if m := issueNumPattern.FindStringSubmatch(subject); m != nil {
		return strconv.Atoi(m[1])
	}
	idx := strings.LastIndex(issueURL, "/")
	if idx < 0 || idx == len(issueURL)-1 {
		return 0, fmt.Errorf("no issue number in subject or URL")
	}
	return strconv.Atoi(issueURL[idx+1:])
}

func extractTitle(subject string) string {
	for _, pattern := range titlePatterns {
		if m := pattern.FindStringSubmatch(subject); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(subject)
}

func extractAssignee(body string) string {
	for _, pattern := range assigneePatterns {
		if m := pattern.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractDescription(body string) string {
	m := descriptionPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	desc := strings.TrimSpace(m[1])
	if runes := []rune(desc); len(runes) > maxDescriptionLen {
		desc = string(runes[:maxDescriptionLen])
	}
	return desc
}

func extractLabels(body string) []string {
	m := labelsPattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	var labels []string
	for _, label := range strings.Split(m[1], ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// extractProject prefers an explicit Project/Repository line in the body and
// falls back to the namespace path of the issue URL.
func extractProject(body, issueURL string) string {
	if m := projectPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return projectFromURL(issueURL)
}

func projectFromURL(issueURL string) string {
	u, err := url.Parse(issueURL)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	for _, marker := range []string{"/-/issues", "/issues", "/-/merge_requests", "/merge_requests"} {
		if idx := strings.Index(path, marker+"/"); idx >= 0 {
			return path[:idx]
		}
	}
	return ""
}
