package api

import (
	"net/http"
	"testing"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lateRuleBody = `{
	"name": "Retard greu",
	"type": "late_arrival",
	"enabled": true,
	"condition": {"threshold": 15, "unit": "minutes", "comparison": "greater_than"},
	"notification": {"email": false, "internal": true, "recipients": ["self", "admin-1"]},
	"schedule": {"immediate": true}
}`

func createRule(t *testing.T, env *testEnv, body string) entities.AlertRule {
	t.Helper()
	rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[entities.AlertRule](t, rec)
}

func TestCreateAlertRule(t *testing.T) {
	env := newTestEnv(t)

	rule := createRule(t, env, lateRuleBody)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "inst-1", rule.InstitutionID, "institution defaults to the caller's")
	assert.Equal(t, entities.StringList{"self", "admin-1"}, rule.Notification.Recipients)
	assert.Equal(t, 1, env.runtime.Engine.RuleCount(), "engine cache refreshed")
}

func TestCreateAlertRule_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "negative threshold",
			body:  `{"name":"x","type":"late_arrival","condition":{"threshold":-1,"unit":"minutes","comparison":"greater_than"}}`,
			field: "condition.threshold",
		},
		{
			name:  "repeat without interval",
			body:  `{"name":"x","type":"late_arrival","condition":{"threshold":5,"unit":"minutes","comparison":"greater_than"},"schedule":{"repeat":true,"repeatInterval":0}}`,
			field: "schedule.repeatInterval",
		},
		{
			name: "unknown field",
			body: `{"name":"x","type":"late_arrival","colour":"red"}`,
		},
		{
			name: "empty body",
			body: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Message)
			if tt.field != "" {
				var fields []string
				for _, f := range resp.Errors {
					fields = append(fields, f.Field)
				}
				assert.Contains(t, fields, tt.field)
			}
		})
	}
}

func TestCreateAlertRule_ForeignInstitution(t *testing.T) {
	env := newTestEnv(t)

	body := `{"institutionId":"inst-2","name":"x","type":"late_arrival","condition":{"threshold":5,"unit":"minutes","comparison":"greater_than"}}`
	rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, superAdmin, http.MethodPost, "/api/admin/alert-rules", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "inst-2", decodeBody[entities.AlertRule](t, rec).InstitutionID)
}

func TestListAlertRules_InstitutionIsolation(t *testing.T) {
	env := newTestEnv(t)
	createRule(t, env, lateRuleBody)

	rec := env.do(t, admin, http.MethodGet, "/api/admin/alert-rules/inst-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]entities.AlertRule](t, rec), 1)

	rec = env.do(t, otherAdmin, http.MethodGet, "/api/admin/alert-rules/inst-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, otherAdmin, http.MethodGet, "/api/admin/alert-rules/inst-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]entities.AlertRule](t, rec))

	rec = env.do(t, superAdmin, http.MethodGet, "/api/admin/alert-rules/inst-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]entities.AlertRule](t, rec), 1)
}

func TestUpdateAlertRule(t *testing.T) {
	env := newTestEnv(t)
	rule := createRule(t, env, lateRuleBody)
	path := "/api/admin/alert-rules/" + rule.ID

	rec := env.do(t, admin, http.MethodPut, path, `{"name":"Retard lleu","condition":{"threshold":5}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[entities.AlertRule](t, rec)
	assert.Equal(t, "Retard lleu", updated.Name)
	assert.InDelta(t, 5, updated.Condition.Threshold, 1e-9)
	assert.Equal(t, alerting.UnitMinutes, updated.Condition.Unit, "nested objects merge")

	rec = env.do(t, admin, http.MethodPut, path, `{"institutionId":"inst-2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, otherAdmin, http.MethodPut, path, `{"name":"mine"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, admin, http.MethodPut, "/api/admin/alert-rules/missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAlertRule_Twice(t *testing.T) {
	env := newTestEnv(t)
	rule := createRule(t, env, lateRuleBody)
	path := "/api/admin/alert-rules/" + rule.ID

	rec := env.do(t, otherAdmin, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, admin, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["message"], "Retard greu")
	assert.Zero(t, env.runtime.Engine.RuleCount())

	rec = env.do(t, admin, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeBody[ErrorResponse](t, rec).Message)
}

func TestToggleAlertRule(t *testing.T) {
	env := newTestEnv(t)
	rule := createRule(t, env, lateRuleBody)
	path := "/api/admin/alert-rules/" + rule.ID + "/toggle"

	rec := env.do(t, admin, http.MethodPatch, path, `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[entities.AlertRule](t, rec).Enabled)
	assert.Zero(t, env.runtime.Engine.RuleCount(), "disabled rules leave the cache")

	rec = env.do(t, admin, http.MethodPatch, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, admin, http.MethodPatch, path, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[entities.AlertRule](t, rec).Enabled)
}

func TestTestAlertRule(t *testing.T) {
	env := newTestEnv(t)
	rule := createRule(t, env, lateRuleBody)

	rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules/"+rule.ID+"/test", `{"employeeId":"emp-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[struct {
		Status string                  `json:"status"`
		Report alerting.DeliveryReport `json:"report"`
	}](t, rec)
	assert.Equal(t, entities.DeliveryStatusSent, resp.Status)
	assert.Equal(t, 2, resp.Report.InternalSent, "self and admin-1")
	assert.Contains(t, resp.Report.Body, "Joan Puig")

	comms, total, err := env.comms.ListForInstitution(t.Context(), repository.CommunicationFilter{InstitutionID: "inst-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, entities.MessageTypeAlert, comms[0].MessageType)
}

func TestTestAlertRule_DefaultsToCaller(t *testing.T) {
	env := newTestEnv(t)
	rule := createRule(t, env, lateRuleBody)

	rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules/"+rule.ID+"/test", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, total, err := env.comms.ListForInstitution(t.Context(), repository.CommunicationFilter{
		InstitutionID: "inst-1",
		RecipientID:   "admin-1",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "self resolves to the caller, deduplicated with admin-1")
}

func TestSeedDefaultAlertRules(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, admin, http.MethodPost, "/api/admin/alert-rules/institution/inst-1/defaults?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 3, decodeBody[map[string]any](t, rec)["created"], 0)

	rec = env.do(t, admin, http.MethodPost, "/api/admin/alert-rules/institution/inst-1/defaults?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0, decodeBody[map[string]any](t, rec)["created"], 0)

	rec = env.do(t, admin, http.MethodPost, "/api/admin/alert-rules/institution/inst-2/defaults", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
