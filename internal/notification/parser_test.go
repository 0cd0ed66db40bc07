package notification

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbox-monitor-go/internal/models"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func rawMessage(id, content string) models.RawMessage {
	return models.RawMessage{ID: id, Raw: []byte(crlf(content))}
}

const assignmentEmail = `From: GitLab <gitlab@example.com>
To: triage-bot@example.com
Subject: Issue #42: Fix login timeout | backend/api
Message-Id: <issue-42@gitlab.example.com>
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Issue was assigned to @dana

Project: backend/api
Labels: bug, auth
Description:
Login sessions expire too early under load.

View it on GitLab: https://gitlab.example.com/backend/api/-/issues/42
`

func TestParseAssignmentEmail(t *testing.T) {
	parser := NewParser()

	n, err := parser.Parse(rawMessage("msg-1", assignmentEmail))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, "https://gitlab.example.com/backend/api/-/issues/42", n.IssueURL)
	assert.Equal(t, 42, n.IssueIID)
	assert.Equal(t, "Fix login timeout", n.Title)
	assert.Equal(t, "backend/api", n.Project)
	assert.Equal(t, "dana", n.CurrentAssignee)
	assert.Equal(t, []string{"bug", "auth"}, n.Labels)
	assert.Equal(t, "Login sessions expire too early under load.", n.Description)
	assert.Equal(t, "msg-1", n.SourceMessageID)
}

func TestParseMultipartPrefersPlainText(t *testing.T) {
	content := `From: GitLab <gitlab@example.com>
Subject: Flaky pipeline (#7) | infra/ci
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary=frontier

--frontier
Content-Type: text/plain; charset=utf-8

Assignee: robin
https://gitlab.example.com/infra/ci/-/issues/7
--frontier
Content-Type: text/html; charset=utf-8

<p>Assignee: nobody</p>
<a href="https://gitlab.example.com/other/project/-/issues/999">wrong</a>
--frontier--
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-2", content))
	require.NoError(t, err)

	assert.Equal(t, 7, n.IssueIID)
	assert.Equal(t, "Flaky pipeline", n.Title)
	assert.Equal(t, "robin", n.CurrentAssignee)
	assert.Equal(t, "https://gitlab.example.com/infra/ci/-/issues/7", n.IssueURL)
}

func TestParseHTMLOnlyBody(t *testing.T) {
	content := `From: GitLab <gitlab@example.com>
Subject: Crash on startup (#15) | mobile/app
MIME-Version: 1.0
Content-Type: text/html; charset=utf-8

<html><body>
<p>Issue was assigned to @kim</p>
<p>https://gitlab.example.com/mobile/app/-/issues/15</p>
</body></html>
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-3", content))
	require.NoError(t, err)

	assert.Equal(t, 15, n.IssueIID)
	assert.Equal(t, "kim", n.CurrentAssignee)
	assert.Equal(t, "mobile/app", n.Project)
}

func TestParseIIDFromURLWhenSubjectHasNone(t *testing.T) {
	content := `From: notifications@gitlab.example.com
Subject: You were assigned an issue
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

See https://gitlab.example.com/group/tools/issues/301 for details.
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-4", content))
	require.NoError(t, err)

	assert.Equal(t, 301, n.IssueIID)
	assert.Equal(t, "group/tools", n.Project)
	assert.Equal(t, "You were assigned an issue", n.Title)
	assert.Empty(t, n.CurrentAssignee)
}

func TestParseRejectsUnrelatedEmail(t *testing.T) {
	content := `From: newsletter@example.com
Subject: Weekly digest
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Nothing to see here.
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-5", content))
	assert.Nil(t, n)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ReasonNotAssignment, parseErr.Reason)
}

func TestParseAcceptsAssignmentSubjectFromOtherSender(t *testing.T) {
	content := `From: noreply@example.com
Subject: tracker assigned you an issue
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

https://gitlab.example.com/ops/runbooks/-/issues/8
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-6", content))
	require.NoError(t, err)
	assert.Equal(t, 8, n.IssueIID)
}

func TestParseRejectsMissingIssueURL(t *testing.T) {
	content := `From: GitLab <gitlab@example.com>
Subject: Issue #9: Broken link | docs
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

The issue body mentions no link at all.
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-7", content))
	assert.Nil(t, n)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ReasonMalformedReference, parseErr.Reason)
}

func TestParseTruncatesLongDescription(t *testing.T) {
	long := strings.Repeat("x", 800)
	content := `From: GitLab <gitlab@example.com>
Subject: Issue #10: Big one | data/etl
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Description:
` + long + `

https://gitlab.example.com/data/etl/-/issues/10
`

	parser := NewParser()
	n, err := parser.Parse(rawMessage("msg-8", content))
	require.NoError(t, err)

	assert.Len(t, n.Description, maxDescriptionLen)
}

func TestExtractTitleFormats(t *testing.T) {
	assert.Equal(t, "Fix login timeout", extractTitle("Issue #42: Fix login timeout | backend"))
	assert.Equal(t, "Flaky pipeline", extractTitle("Flaky pipeline (#7) | infra"))
	assert.Equal(t, "Crash loop", extractTitle("Crash loop - Issue #3"))
	assert.Equal(t, "Odd subject", extractTitle("Odd subject | whatever"))
	assert.Equal(t, "Plain subject", extractTitle("Plain subject"))
}

func TestProjectFromURL(t *testing.T) {
	assert.Equal(t, "backend/api", projectFromURL("https://gitlab.example.com/backend/api/-/issues/42"))
	assert.Equal(t, "group/sub/tools", projectFromURL("https://gitlab.example.com/group/sub/tools/issues/1"))
	assert.Equal(t, "a/b", projectFromURL("https://gitlab.example.com/a/b/-/merge_requests/12"))
	assert.Equal(t, "", projectFromURL("not a url"))
}
