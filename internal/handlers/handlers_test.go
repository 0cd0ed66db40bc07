package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbox-monitor-go/internal/config"
	"mailbox-monitor-go/internal/decision"
	"mailbox-monitor-go/internal/health"
	"mailbox-monitor-go/internal/metrics"
	"mailbox-monitor-go/internal/models"
	"mailbox-monitor-go/internal/monitor"
	"mailbox-monitor-go/internal/notification"
	"mailbox-monitor-go/internal/prediction"
	"mailbox-monitor-go/internal/state"
	"mailbox-monitor-go/internal/tracker"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.NewMetrics()

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(ctx context.Context) error { return nil })
	down = pingFunc(func(ctx context.Context) error { return errors.New("unreachable") })
)

type stubReader struct{}

func (stubReader) ListUnseen(ctx context.Context) ([]models.RawMessage, error) { return nil, nil }
func (stubReader) MarkProcessed(ctx context.Context, msg models.RawMessage) error {
	return nil
}
func (stubReader) Ping(ctx context.Context) error { return nil }
func (stubReader) Close() error                   { return nil }

type stubPredictor struct{}

func (stubPredictor) PredictAssignee(ctx context.Context, n *models.IssueNotification) (*models.Recommendation, error) {
	return &models.Recommendation{}, nil
}

type stubReassigner struct{}

func (stubReassigner) Reassign(ctx context.Context, issueURL, newAssignee, reasoning string) (*tracker.ReassignResult, error) {
	return &tracker.ReassignResult{}, nil
}

func newTestScheduler() *monitor.Scheduler {
	m := monitor.NewMonitor(stubReader{}, notification.NewParser(), stubPredictor{}, stubReassigner{},
		decision.NewEngine(0.7, false), state.NewMemoryStore(3), testMetrics, 1000)
	return monitor.NewScheduler(time.Hour, m)
}

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	checker := health.NewChecker(up, up, up, nil)
	router := newRouter(NewHandlers(checker, state.NewMemoryStore(3), newTestScheduler(), nil))

	w := doRequest(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var report models.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Overall)
	assert.True(t, report.Mailbox)
}

func TestHealthEndpointDegraded(t *testing.T) {
	checker := health.NewChecker(up, down, up, nil)
	router := newRouter(NewHandlers(checker, state.NewMemoryStore(3), newTestScheduler(), nil))

	w := doRequest(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report models.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Overall)
	assert.False(t, report.Prediction)
	assert.True(t, report.Mailbox)
}

func TestRecordsEndpoint(t *testing.T) {
	store := state.NewMemoryStore(3)
	require.NoError(t, store.RecordReassigned("msg-1", "robin"))
	require.NoError(t, store.RecordSkipped("msg-2", models.SkipLowConfidence))

	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), store, newTestScheduler(), nil))

	w := doRequest(router, http.MethodGet, "/api/v1/records")
	require.Equal(t, http.StatusOK, w.Code)

	var records []models.ProcessingRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	w = doRequest(router, http.MethodGet, "/api/v1/records?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	w = doRequest(router, http.MethodGet, "/api/v1/records?limit=nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordByMessageID(t *testing.T) {
	store := state.NewMemoryStore(3)
	require.NoError(t, store.RecordReassigned("msg-1", "robin"))

	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), store, newTestScheduler(), nil))

	w := doRequest(router, http.MethodGet, "/api/v1/records/msg-1")
	require.Equal(t, http.StatusOK, w.Code)

	var record models.ProcessingRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "msg-1", record.MessageID)
	assert.Equal(t, models.OutcomeReassigned, record.Outcome)

	w = doRequest(router, http.MethodGet, "/api/v1/records/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerEndpoints(t *testing.T) {
	sched := newTestScheduler()
	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), state.NewMemoryStore(3), sched, nil))

	w := doRequest(router, http.MethodGet, "/api/v1/scheduler/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"stopped"`)

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/start")
	require.Equal(t, http.StatusOK, w.Code)
	defer sched.Stop()

	w = doRequest(router, http.MethodGet, "/api/v1/scheduler/status")
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/run-once")
	require.Equal(t, http.StatusOK, w.Code)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, float64(0), report["fetched"])

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/stop")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/scheduler/status")
	assert.Contains(t, w.Body.String(), `"status":"stopped"`)
}

func TestAssigneesEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assignees" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"assignees":["robin","dana"]}`))
	}))
	defer upstream.Close()

	predictor := prediction.NewClient(&config.PredictionConfig{APIURL: upstream.URL, TimeoutSeconds: 5})
	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), state.NewMemoryStore(3), newTestScheduler(), predictor))

	w := doRequest(router, http.MethodGet, "/api/v1/assignees")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"assignees":["robin","dana"]}`, w.Body.String())
}

func TestAssigneesEndpointUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	predictor := prediction.NewClient(&config.PredictionConfig{APIURL: upstream.URL, TimeoutSeconds: 5})
	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), state.NewMemoryStore(3), newTestScheduler(), predictor))

	w := doRequest(router, http.MethodGet, "/api/v1/assignees")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPredictionHistoryEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"issue":"#7","recommended_assignee":"robin"}]`))
	}))
	defer upstream.Close()

	predictor := prediction.NewClient(&config.PredictionConfig{APIURL: upstream.URL, TimeoutSeconds: 5})
	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), state.NewMemoryStore(3), newTestScheduler(), predictor))

	w := doRequest(router, http.MethodGet, "/api/v1/predictions/history?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recommended_assignee":"robin"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(NewHandlers(health.NewChecker(up, up, up, nil), state.NewMemoryStore(3), newTestScheduler(), nil))

	w := doRequest(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailbox_monitor")
}
