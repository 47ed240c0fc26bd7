// Package trigger turns attendance messages from external sources into
// alert trigger events.
package trigger

import (
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/validation"
)

// Payload keys. "value" and "unit" are accepted as short forms of
// measuredValue and measuredUnit.
const (
	keyEmployeeID    = "employeeId"
	keyEmployeeName  = "employeeName"
	keyInstitutionID = "institutionId"
	keyType          = "type"
	keyMeasuredValue = "measuredValue"
	keyValue         = "value"
	keyMeasuredUnit  = "measuredUnit"
	keyUnit          = "unit"
	keyOccurredAt    = "occurredAt"
	keyResolved      = "resolved"
)

// Parser decodes attendance payloads.
type Parser struct {
	validate *validation.Validator
	now      func() time.Time
}

// NewParser creates a Parser.
func NewParser(v *validation.Validator) *Parser {
	if v == nil {
		v = validation.New()
	}
	return &Parser{validate: v, now: time.Now}
}

// InstitutionFromTopic extracts the institution of a topic shaped like
// "fichai/<institutionId>/attendance". It returns "" for other shapes.
func InstitutionFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] != "attendance" {
		return ""
	}
	return parts[1]
}

// TopicFor returns the attendance topic of an institution.
func TopicFor(institutionID string) string {
	return "fichai/" + institutionID + "/attendance"
}

// Parse decodes a JSON payload received on topic. The institution comes from
// the topic when the payload omits it; a payload naming another institution
// is rejected.
func (p *Parser) Parse(topic string, payload []byte) (*alerting.TriggerEvent, error) {
	obj, err := jason.NewObjectFromBytes(payload)
	if err != nil {
		return nil, errors.Validation("invalid attendance payload: " + err.Error())
	}

	event := &alerting.TriggerEvent{
		EmployeeID:    optString(obj, keyEmployeeID),
		EmployeeName:  optString(obj, keyEmployeeName),
		InstitutionID: optString(obj, keyInstitutionID),
		Type:          optString(obj, keyType),
		MeasuredUnit:  firstString(obj, keyMeasuredUnit, keyUnit),
	}

	if fromTopic := InstitutionFromTopic(topic); fromTopic != "" {
		if event.InstitutionID != "" && event.InstitutionID != fromTopic {
			return nil, errors.Validation("payload institution does not match topic",
				errors.FieldError{Field: keyInstitutionID, Message: "must match the topic institution " + fromTopic})
		}
		event.InstitutionID = fromTopic
	}

	if resolved, err := obj.GetBoolean(keyResolved); err == nil {
		event.Resolved = resolved
	}

	value, err := measuredValue(obj)
	if err != nil {
		return nil, err
	}
	event.MeasuredValue = value

	event.OccurredAt = p.now()
	if s := optString(obj, keyOccurredAt); s != "" {
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, errors.Validation("invalid occurredAt",
				errors.FieldError{Field: keyOccurredAt, Message: "occurredAt must be an RFC 3339 timestamp"})
		}
		event.OccurredAt = at
	}

	if err := p.validate.Struct(event); err != nil {
		return nil, err
	}
	return event, nil
}

func measuredValue(obj *jason.Object) (float64, error) {
	for _, key := range []string{keyMeasuredValue, keyValue} {
		v, err := obj.GetValue(key)
		if err != nil {
			continue
		}
		f, err := parseValue(v)
		if err != nil {
			return 0, errors.Validation("invalid "+key,
				errors.FieldError{Field: key, Message: key + " must be a number"})
		}
		return f, nil
	}
	return 0, nil
}

// parseValue accepts JSON numbers and numeric strings.
func parseValue(v *jason.Value) (float64, error) {
	if n, err := v.Number(); err == nil {
		return alerting.ParseMeasurement(n)
	}
	s, err := v.String()
	if err != nil {
		return 0, err
	}
	return alerting.ParseMeasurement(s)
}

func optString(obj *jason.Object, key string) string {
	s, err := obj.GetString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstString(obj *jason.Object, keys ...string) string {
	for _, k := range keys {
		if s := optString(obj, k); s != "" {
			return s
		}
	}
	return ""
}
