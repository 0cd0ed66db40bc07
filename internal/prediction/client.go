package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/models"
)

// APIError is a non-2xx response from the prediction service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prediction API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the assignee prediction service.
type Client struct {
	baseURL string
	client  *resty.Client
}

// NewClient creates a prediction service client
func NewClient(cfg *config.PredictionConfig) *Client {
	client := resty.New()
	client.SetTimeout(cfg.Timeout())
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		client:  client,
	}
}

type issuePayload struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Labels          []string `json:"labels"`
	CurrentAssignee string   `json:"current_assignee"`
	Project         string   `json:"project"`
	URL             string   `json:"url"`
	IssueNumber     string   `json:"issue_number"`
}

type predictRequest struct {
	Issue issuePayload `json:"issue"`
}

type predictResponse struct {
	RecommendedAssignee string   `json:"recommended_assignee"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	Alternatives        []string `json:"alternatives"`
}

// PredictAssignee asks the service for the best assignee for an issue. An
// empty Assignee in the result means the service had no recommendation.
func (c *Client) PredictAssignee(ctx context.Context, n *models.IssueNotification) (*models.Recommendation, error) {
	labels := n.Labels
	if labels == nil {
		labels = []string{}
	}

	request := predictRequest{
		Issue: issuePayload{
			Title:           n.Title,
			Description:     n.Description,
			Labels:          labels,
			CurrentAssignee: n.CurrentAssignee,
			Project:         n.Project,
			URL:             n.IssueURL,
			IssueNumber:     strconv.Itoa(n.IssueIID),
		},
	}

	logrus.Infof("Requesting assignee prediction for issue #%d (%s)", n.IssueIID, n.Title)

	response, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		Post(c.baseURL + "/predict-assignee")
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}

	var result predictResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("prediction confidence %v outside [0, 1]", result.Confidence)
	}

	if result.RecommendedAssignee != "" {
		logrus.Infof("Prediction: %s (confidence: %.2f)", result.RecommendedAssignee, result.Confidence)
	}

	return &models.Recommendation{
		Assignee:     result.RecommendedAssignee,
		Confidence:   result.Confidence,
		Reasoning:    result.Reasoning,
		Alternatives: result.Alternatives,
	}, nil
}

// AvailableAssignees lists the usernames the service can recommend for a
// project. The service answers either a bare list or an object with an
// assignees key.
func (c *Client) AvailableAssignees(ctx context.Context, project string) ([]string, error) {
	req := c.client.R().SetContext(ctx)
	if project != "" {
		req.SetQueryParam("project", project)
	}

	response, err := req.Get(c.baseURL + "/assignees")
	if err != nil {
		return nil, fmt.Errorf("assignees request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}

	var wrapped struct {
		Assignees []string `json:"assignees"`
	}
	if err := json.Unmarshal(response.Body(), &wrapped); err == nil && wrapped.Assignees != nil {
		return wrapped.Assignees, nil
	}
	var list []string
	if err := json.Unmarshal(response.Body(), &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("unexpected assignees response format")
}

// PredictionHistory returns the service's recent predictions, newest first.
func (c *Client) PredictionHistory(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(c.baseURL + "/predictions/history")
	if err != nil {
		return nil, fmt.Errorf("prediction history request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}

	var wrapped struct {
		Predictions []map[string]interface{} `json:"predictions"`
	}
	if err := json.Unmarshal(response.Body(), &wrapped); err == nil && wrapped.Predictions != nil {
		return wrapped.Predictions, nil
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(response.Body(), &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("unexpected prediction history response format")
}

// Ping checks that the prediction service is up.
func (c *Client) Ping(ctx context.Context) error {
	response, err := c.client.R().SetContext(ctx).Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("prediction health check failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return &APIError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return nil
}
