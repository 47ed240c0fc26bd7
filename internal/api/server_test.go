package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edupresencia/fichai/internal/alerting"
	apiv2 "github.com/edupresencia/fichai/internal/api/v2"
	"github.com/edupresencia/fichai/internal/auth"
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := datastore.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })

	settings := conf.Default()
	settings.Auth.SessionSecret = "0123456789abcdef0123456789abcdef"
	settings.Alerting.HistoryCleanupSchedule = ""

	log := logger.NewNop()
	rules := repository.NewAlertRuleRepository(db)
	comms := repository.NewCommunicationRepository(db)
	employees := repository.NewEmployeeRepository(db)
	email := notification.NewConsoleSender(settings.Email, log)

	runtime, err := alerting.Initialize(t.Context(), settings, alerting.Dependencies{
		Rules:          rules,
		Communications: comms,
		Employees:      employees,
		Email:          email,
	}, log)
	require.NoError(t, err)
	t.Cleanup(runtime.Stop)

	return New(t.Context(), apiv2.Dependencies{
		Settings:       settings,
		Alerting:       runtime,
		History:        rules,
		Communications: comms,
		Employees:      employees,
		Email:          email,
		Sessions:       auth.NewSessionStore(settings.Auth),
	}, metrics.New(), log)
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)

	serve(s, http.MethodGet, "/healthz")
	serve(s, http.MethodGet, "/api/admin/alert-rules/schema")

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `fichai_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, out, `fichai_http_requests_total{method="GET",route="/api/admin/alert-rules/schema",status="401"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestServer_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apiv2.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Message)
}

func TestServer_HeadError(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodHead, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}
