package trigger

import (
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 9, 8, 20, 0, 0, time.UTC)

func newTestParser() *Parser {
	p := NewParser(nil)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestInstitutionFromTopic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "inst-1", InstitutionFromTopic("fichai/inst-1/attendance"))
	assert.Empty(t, InstitutionFromTopic("fichai/inst-1/other"))
	assert.Empty(t, InstitutionFromTopic("fichai/attendance"))
	assert.Empty(t, InstitutionFromTopic(""))
	assert.Equal(t, "inst-9", InstitutionFromTopic(TopicFor("inst-9")))
}

func TestParse(t *testing.T) {
	t.Parallel()

	event, err := newTestParser().Parse("fichai/inst-1/attendance", []byte(`{
		"employeeId": "emp-1",
		"employeeName": "Joan Puig",
		"type": "late_arrival",
		"measuredValue": 25,
		"measuredUnit": "minutes",
		"occurredAt": "2026-03-09T08:25:00+01:00"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "emp-1", event.EmployeeID)
	assert.Equal(t, "Joan Puig", event.EmployeeName)
	assert.Equal(t, "inst-1", event.InstitutionID)
	assert.Equal(t, alerting.RuleTypeLateArrival, event.Type)
	assert.InDelta(t, 25.0, event.MeasuredValue, 1e-9)
	assert.Equal(t, alerting.UnitMinutes, event.MeasuredUnit)
	assert.True(t, event.OccurredAt.Equal(time.Date(2026, 3, 9, 7, 25, 0, 0, time.UTC)))
	assert.False(t, event.Resolved)
}

func TestParse_ShortFormsAndDefaults(t *testing.T) {
	t.Parallel()

	event, err := newTestParser().Parse("attendance", []byte(
		`{"employeeId":"emp-2","institutionId":"inst-2","type":"absence","value":"1","unit":"days","resolved":true}`))
	require.NoError(t, err)
	assert.Equal(t, "inst-2", event.InstitutionID)
	assert.InDelta(t, 1.0, event.MeasuredValue, 1e-9)
	assert.Equal(t, alerting.UnitDays, event.MeasuredUnit)
	assert.True(t, event.Resolved)
	assert.Equal(t, fixedNow, event.OccurredAt, "missing occurredAt uses the receive time")
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		topic   string
		payload string
		field   string
	}{
		{"not json", "fichai/inst-1/attendance", `late`, ""},
		{"missing employee", "fichai/inst-1/attendance", `{"type":"late_arrival","value":20}`, "employeeId"},
		{"missing institution", "attendance", `{"employeeId":"e","type":"late_arrival"}`, "institutionId"},
		{"institution mismatch", "fichai/inst-1/attendance", `{"employeeId":"e","institutionId":"inst-2","type":"late_arrival"}`, "institutionId"},
		{"unknown type", "fichai/inst-1/attendance", `{"employeeId":"e","type":"overtime"}`, "type"},
		{"negative value", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","value":-3}`, "measuredValue"},
		{"non numeric value", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","value":"late"}`, "value"},
		{"boolean value", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","value":true}`, "value"},
		{"null value", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","measuredValue":null}`, "measuredValue"},
		{"unknown unit", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","unit":"weeks"}`, "measuredUnit"},
		{"bad timestamp", "fichai/inst-1/attendance", `{"employeeId":"e","type":"late_arrival","occurredAt":"yesterday"}`, "occurredAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newTestParser().Parse(tt.topic, []byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
			if tt.field == "" {
				return
			}
			var fields []string
			for _, f := range errors.FieldsOf(err) {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
