package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/observability/metrics"
	"github.com/amdinfer/inference-server/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *endpoint.Manager) {
	t.Helper()
	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)
	return New(mgr, metrics.New(), nil), mgr
}

func TestHealthLive(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyWithNoModelsLoaded(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModelReadyUnknownModelReturns503(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/models/nope/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWorkerLoadThenModelList(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v2/workers/simulation/load", strings.NewReader(`{}`))
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/models", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "simulation")
}

func TestInferAgainstSimulationWorker(t *testing.T) {
	s, mgr := newTestServer(t)

	_, err := mgr.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)

	body := `{"id":"r1","inputs":[{"name":"x","shape":[1],"datatype":"FP32","data":[1.0]}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v2/models/simulation/infer", strings.NewReader(body))
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"r1"`)
}

func TestInferUnknownModelReturns400(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"inputs":[{"name":"x","shape":[1],"datatype":"FP32","data":[1.0]}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v2/models/nope/infer", strings.NewReader(body))
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
