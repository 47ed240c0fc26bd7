package api

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedHistory(t *testing.T, env *testEnv) {
	t.Helper()
	base := time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)
	rows := []entities.AlertHistory{
		{RuleID: "rule-a", RuleName: "Retard greu", InstitutionID: "inst-1", EmployeeID: "emp-1", EmployeeName: "Joan Puig", Type: "late_arrival", MeasuredValue: 20, MeasuredUnit: "minutes", Attempt: 1, Recipients: entities.StringList{"emp-1", "admin-1"}, InternalSent: 2, Status: entities.DeliveryStatusSent, Subject: "Alerta", FiredAt: base},
		{RuleID: "rule-a", RuleName: "Retard greu", InstitutionID: "inst-1", EmployeeID: "emp-1", EmployeeName: "Joan Puig", Type: "late_arrival", MeasuredValue: 35, MeasuredUnit: "minutes", Attempt: 1, Recipients: entities.StringList{"emp-1"}, InternalSent: 1, Status: entities.DeliveryStatusSent, FiredAt: base.Add(24 * time.Hour)},
		{RuleID: "rule-b", RuleName: "Absència", InstitutionID: "inst-1", EmployeeID: "admin-1", Type: "absence", MeasuredValue: 1, MeasuredUnit: "days", Attempt: 1, Recipients: entities.StringList{"admin-1"}, EmailFailed: 1, Status: entities.DeliveryStatusFailed, FiredAt: base.Add(48 * time.Hour)},
		{RuleID: "rule-c", RuleName: "Retard", InstitutionID: "inst-2", EmployeeID: "emp-4", Type: "late_arrival", Attempt: 1, Status: entities.DeliveryStatusSent, FiredAt: base},
	}
	for i := range rows {
		require.NoError(t, env.rules.SaveHistory(t.Context(), &rows[i]))
	}
}

type historyResponse struct {
	History []entities.AlertHistory `json:"history"`
	Total   int64                   `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
}

func TestListAlertHistory(t *testing.T) {
	env := newTestEnv(t)
	seedHistory(t, env)

	tests := []struct {
		name      string
		query     string
		wantTotal int64
		wantLen   int
		wantLimit int
	}{
		{"all", "", 3, 3, defaultListLimit},
		{"by rule", "?ruleId=rule-a", 2, 2, defaultListLimit},
		{"by employee", "?employeeId=admin-1", 1, 1, defaultListLimit},
		{"since timestamp", "?since=2026-03-10T00:00:00Z", 2, 2, defaultListLimit},
		{"since date", "?since=2026-03-08", 3, 3, defaultListLimit},
		{"until timestamp", "?until=2026-03-09T12:00:00Z", 1, 1, defaultListLimit},
		{"paged", "?limit=1&offset=1", 3, 1, 1},
		{"limit capped", "?limit=1000", 3, 3, maxListLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-1"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decodeBody[historyResponse](t, rec)
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Len(t, resp.History, tt.wantLen)
			assert.Equal(t, tt.wantLimit, resp.Limit)
		})
	}
}

func TestListAlertHistory_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	seedHistory(t, env)

	rec := env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[historyResponse](t, rec)
	require.Len(t, resp.History, 3)
	assert.Equal(t, "rule-b", resp.History[0].RuleID)
}

func TestListAlertHistory_Rejections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-1?since=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "since", decodeBody[ErrorResponse](t, rec).Errors[0].Field)

	rec = env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-1?since=2026-03-10&until=2026-03-09", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportAlertHistory(t *testing.T) {
	env := newTestEnv(t)
	seedHistory(t, env)

	rec := env.do(t, admin, http.MethodGet, "/api/admin/alert-history/inst-1/export?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "alert-history-inst-1-")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(historySheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4, "header and three rows")
	assert.Equal(t, historyHeaders["en"], rows[0])
	assert.Equal(t, "Absència", rows[1][1])
	assert.Equal(t, "admin-1", rows[1][3], "employee id when the name is unknown")
	assert.Equal(t, "Joan Puig", rows[3][3])
	assert.Equal(t, "emp-1, admin-1", rows[3][8])
	assert.Equal(t, "2", rows[3][9])
}

func TestBuildHistoryWorkbook_Empty(t *testing.T) {
	data, err := buildHistoryWorkbook(nil, "xx")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(historySheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, historyHeaders["ca"], rows[0])
	assert.Equal(t, []string{historySheetName}, f.GetSheetList())
}
