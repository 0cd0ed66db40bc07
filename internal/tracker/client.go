package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/config"
)

// APIError is a non-2xx response from the GitLab API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitLab API returned status %d: %s", e.StatusCode, e.Body)
}

// User is a GitLab user account.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

// Member is a project member eligible for assignment.
type Member struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	AccessLevel int    `json:"access_level"`
	State       string `json:"state"`
}

// Issue is the subset of the GitLab issue resource the pipeline needs.
type Issue struct {
	ID          int      `json:"id"`
	IID         int      `json:"iid"`
	ProjectID   int      `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	Labels      []string `json:"labels"`
	WebURL      string   `json:"web_url"`
	Assignee    *User    `json:"assignee"`
	Assignees   []User   `json:"assignees"`
}

// ReassignResult describes what Reassign did to an issue.
type ReassignResult struct {
	ProjectPath      string
	IssueIID         int
	PreviousAssignee string
	AlreadyAssigned  bool
}

// Expected formats: /group/project/-/issues/123 or /group/project/issues/123
var issuePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/([^/]+/[^/]+)/-/issues/(\d+)`),
	regexp.MustCompile(`^/([^/]+/[^/]+)/issues/(\d+)`),
	regexp.MustCompile(`^/([^/]+/[^/]+)/-/merge_requests/(\d+)`),
	regexp.MustCompile(`^/([^/]+/[^/]+)/merge_requests/(\d+)`),
}

// ParseIssueURL extracts the project path and issue IID from a GitLab
// issue or merge request URL.
func ParseIssueURL(issueURL string) (string, int, error) {
	u, err := url.Parse(issueURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid issue URL %q: %w", issueURL, err)
	}

	for _, pattern := range issuePathPatterns {
		if m := pattern.FindStringSubmatch(u.Path); m != nil {
			iid, err := strconv.Atoi(m[2])
			if err != nil {
				return "", 0, fmt.Errorf("invalid issue number in URL %q", issueURL)
			}
			return m[1], iid, nil
		}
	}
	return "", 0, fmt.Errorf("could not parse issue URL %q", issueURL)
}

// Client talks to the GitLab REST API.
type Client struct {
	apiURL string
	client *resty.Client
}

// NewClient creates a GitLab API client
func NewClient(cfg *config.TrackerConfig) *Client {
	client := resty.New()
	client.SetTimeout(cfg.Timeout())
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})
	client.SetHeader("PRIVATE-TOKEN", cfg.PrivateToken)

	return &Client{
		apiURL: strings.TrimRight(cfg.BaseURL, "/") + "/api/v4",
		client: client,
	}
}

// CurrentUser returns the account the private token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get(c.apiURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return &user, nil
}

// Ping checks that GitLab is reachable and the token is valid.
func (c *Client) Ping(ctx context.Context) error {
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	logrus.Debugf("GitLab health check passed (user: %s)", user.Username)
	return nil
}

// GetIssue fetches an issue by project path and IID.
func (c *Client) GetIssue(ctx context.Context, projectPath string, iid int) (*Issue, error) {
	var issue Issue
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&issue).
		Get(fmt.Sprintf("%s/projects/%s/issues/%d", c.apiURL, url.PathEscape(projectPath), iid))
	if err != nil {
		return nil, fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return &issue, nil
}

// FindUser resolves a username to a user account.
func (c *Client) FindUser(ctx context.Context, username string) (*User, error) {
	var users []User
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("username", username).
		SetResult(&users).
		Get(c.apiURL + "/users")
	if err != nil {
		return nil, fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	return &users[0], nil
}

// ProjectMembers lists all members of a project, including inherited ones.
func (c *Client) ProjectMembers(ctx context.Context, projectPath string) ([]Member, error) {
	var members []Member
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("per_page", "100").
		SetResult(&members).
		Get(fmt.Sprintf("%s/projects/%s/members/all", c.apiURL, url.PathEscape(projectPath)))
	if err != nil {
		return nil, fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return members, nil
}

// ValidateAssignee reports whether the user is a member of the project.
func (c *Client) ValidateAssignee(ctx context.Context, projectPath, username string) (bool, error) {
	members, err := c.ProjectMembers(ctx, projectPath)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member.Username == username {
			return true, nil
		}
	}
	logrus.Warnf("User %s is not a member of project %s", username, projectPath)
	return false, nil
}

// UpdateAssignee sets the issue's assignee to the given user id.
func (c *Client) UpdateAssignee(ctx context.Context, projectPath string, iid, assigneeID int) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string][]int{"assignee_ids": {assigneeID}}).
		Put(fmt.Sprintf("%s/projects/%s/issues/%d", c.apiURL, url.PathEscape(projectPath), iid))
	if err != nil {
		return fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return nil
}

// AddComment posts a note on the issue.
func (c *Client) AddComment(ctx context.Context, projectPath string, iid int, body string) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"body": body}).
		Post(fmt.Sprintf("%s/projects/%s/issues/%d/notes", c.apiURL, url.PathEscape(projectPath), iid))
	if err != nil {
		return fmt.Errorf("GitLab request failed: %w", err)
	}
	if response.StatusCode() != http.StatusCreated && response.StatusCode() != http.StatusOK {
		return &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return nil
}

// Reassign runs the complete reassignment workflow for an issue URL: it
// validates the new assignee against the project members, short-circuits
// when the issue already has that assignee, updates the assignee, and leaves
// an explanatory note. A failed note never fails the reassignment.
func (c *Client) Reassign(ctx context.Context, issueURL, newAssignee, reasoning string) (*ReassignResult, error) {
	projectPath, iid, err := ParseIssueURL(issueURL)
	if err != nil {
		return nil, err
	}

	valid, err := c.ValidateAssignee(ctx, projectPath, newAssignee)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("cannot assign issue #%d to %s: not a member of %s", iid, newAssignee, projectPath)
	}

	issue, err := c.GetIssue(ctx, projectPath, iid)
	if err != nil {
		return nil, err
	}

	result := &ReassignResult{ProjectPath: projectPath, IssueIID: iid}
	if issue.Assignee != nil {
		result.PreviousAssignee = issue.Assignee.Username
	}

	if result.PreviousAssignee == newAssignee {
		logrus.Infof("Issue #%d is already assigned to %s", iid, newAssignee)
		result.AlreadyAssigned = true
		return result, nil
	}

	user, err := c.FindUser(ctx, newAssignee)
	if err != nil {
		return nil, err
	}

	if err := c.UpdateAssignee(ctx, projectPath, iid, user.ID); err != nil {
		return nil, err
	}

	if err := c.AddComment(ctx, projectPath, iid, reassignmentComment(result.PreviousAssignee, newAssignee, reasoning)); err != nil {
		logrus.Warnf("Failed to add comment to issue #%d: %v", iid, err)
	}

	logrus.Infof("Reassigned issue #%d in %s to %s", iid, projectPath, newAssignee)
	return result, nil
}

// reassignmentComment builds the note left on a reassigned issue.
func reassignmentComment(previous, assignee, reasoning string) string {
	if previous == "" {
		previous = "unassigned"
	}

	parts := []string{
		"🤖 **Automated Assignment Update**",
		"",
		fmt.Sprintf("This issue has been reassigned from `%s` to `%s` based on AI analysis.", previous, assignee),
	}
	if reasoning != "" {
		parts = append(parts, "", "**AI Reasoning:**", reasoning)
	}
	parts = append(parts, "", "---", "*This assignment was made automatically by the mailbox-monitor service.*")

	return strings.Join(parts, "\n")
}
