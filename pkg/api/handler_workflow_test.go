package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// systemOnlyTemplate completes without any stage participants, so API
// tests don't need a harness.
func systemOnlyTemplate() *config.WorkflowTemplate {
	return &config.WorkflowTemplate{
		Name: "api-test",
		Steps: []config.StepConfig{
			{ID: "initialize", Kind: models.StepKindSystem, Target: "initialize", Outputs: []string{"trip-request"}},
			{ID: "finalize", Kind: models.StepKindSystem, Target: "finalize", DependsOn: []string{"initialize"}, Inputs: []string{"trip-request"}, Outputs: []string{"workflow-finalized"}},
		},
	}
}

// stuckTemplate dispatches to a target nobody serves, so the workflow
// stays running until cancelled or timed out.
func stuckTemplate() *config.WorkflowTemplate {
	return &config.WorkflowTemplate{
		Name: "api-stuck",
		Steps: []config.StepConfig{
			{ID: "initialize", Kind: models.StepKindSystem, Target: "initialize", Outputs: []string{"trip-request"}},
			{ID: "plan", Kind: models.StepKindStage, Target: "nobody", Timeout: time.Minute, DependsOn: []string{"initialize"}, Inputs: []string{"trip-request"}, Outputs: []string{"plan-generated"}},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	engineCfg := config.DefaultEngineConfig()
	engineCfg.MaxConcurrentWorkflows = 2
	cfg := &config.Config{
		Engine:     engineCfg,
		Blackboard: config.DefaultBlackboardConfig(),
		API:        &config.APIConfig{ListenAddr: ":0", WSWriteTimeout: time.Second},
		TemplateRegistry: config.NewTemplateRegistry(map[string]*config.WorkflowTemplate{
			"api-test":  systemOnlyTemplate(),
			"api-stuck": stuckTemplate(),
		}),
		DefaultTemplate: "api-test",
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	board, err := blackboard.New(cfg.Blackboard, bus)
	require.NoError(t, err)
	eng := engine.NewEngine(cfg, bus, board)
	eng.Start(context.Background())
	t.Cleanup(eng.Stop)

	s := &Server{cfg: cfg, engine: eng, board: board}
	e := echo.New()
	e.POST("/api/v1/workflows", s.startWorkflowHandler)
	e.GET("/api/v1/workflows", s.listWorkflowsHandler)
	e.GET("/api/v1/workflows/:workflowID", s.getWorkflowHandler)
	e.POST("/api/v1/workflows/:workflowID/cancel", s.cancelWorkflowHandler)
	return s, e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStartWorkflowHandler(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-1","data":{"destination":"Lisbon"}}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var result engine.StartResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.NotEmpty(t, result.WorkflowID)
		assert.Equal(t, "saga-1", result.SagaID)
		assert.Equal(t, models.SagaStatusRunning, result.Status)
	})

	t.Run("missing saga_id returns 400", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"data":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown template returns 400", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-1","template_name":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate active saga returns 409", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-dup","template_name":"api-stuck"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		rec = postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-dup","template_name":"api-stuck"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("at capacity returns 429", func(t *testing.T) {
		_, e := newTestServer(t)
		require.Equal(t, http.StatusAccepted, postJSON(e, "/api/v1/workflows", `{"saga_id":"cap-1","template_name":"api-stuck"}`).Code)
		require.Equal(t, http.StatusAccepted, postJSON(e, "/api/v1/workflows", `{"saga_id":"cap-2","template_name":"api-stuck"}`).Code)

		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"cap-3","template_name":"api-stuck"}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestGetWorkflowHandler(t *testing.T) {
	t.Run("unknown workflow returns 404", func(t *testing.T) {
		_, e := newTestServer(t)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/nope", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("known workflow returns snapshot", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-get","template_name":"api-stuck"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		var result engine.StartResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+result.WorkflowID, nil)
		getRec := httptest.NewRecorder()
		e.ServeHTTP(getRec, req)

		require.Equal(t, http.StatusOK, getRec.Code)
		var snapshot models.SagaSnapshot
		require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &snapshot))
		assert.Equal(t, result.WorkflowID, snapshot.WorkflowID)
		assert.Equal(t, "saga-get", snapshot.SagaID)
	})
}

func TestListWorkflowsHandler(t *testing.T) {
	_, e := newTestServer(t)
	require.Equal(t, http.StatusAccepted, postJSON(e, "/api/v1/workflows", `{"saga_id":"list-1","template_name":"api-stuck"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshots []models.SagaSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.NotEmpty(t, snapshots)
}

func TestCancelWorkflowHandler(t *testing.T) {
	t.Run("unknown workflow returns 404", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows/nope/cancel", `{"reason":"test"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("running workflow is cancelled", func(t *testing.T) {
		_, e := newTestServer(t)
		rec := postJSON(e, "/api/v1/workflows", `{"saga_id":"saga-cancel","template_name":"api-stuck"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		var result engine.StartResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		cancelRec := postJSON(e, "/api/v1/workflows/"+result.WorkflowID+"/cancel", `{"reason":"operator request"}`)
		require.Equal(t, http.StatusOK, cancelRec.Code)
		var resp CancelResponse
		require.NoError(t, json.Unmarshal(cancelRec.Body.Bytes(), &resp))
		assert.Equal(t, result.WorkflowID, resp.WorkflowID)
	})
}
