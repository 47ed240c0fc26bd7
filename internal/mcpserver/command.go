// Package mcpserver exposes administrative alerting actions as a closed set
// of commands, executed directly or as MCP tools for an external assistant.
package mcpserver

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/validation"
)

// Action names a command.
type Action string

const (
	ActionListAlertRules  Action = "listAlertRules"
	ActionCreateAlertRule Action = "createAlertRule"
	ActionToggleAlertRule Action = "toggleAlertRule"
	ActionDeleteAlertRule Action = "deleteAlertRule"
	ActionGetAlertHistory Action = "getAlertHistory"
	ActionSendEmail       Action = "sendEmail"
	ActionSendMessage     Action = "sendMessage"
)

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{
		ActionListAlertRules,
		ActionCreateAlertRule,
		ActionToggleAlertRule,
		ActionDeleteAlertRule,
		ActionGetAlertHistory,
		ActionSendEmail,
		ActionSendMessage,
	}
}

// Command is one of the command types declared in this package.
type Command interface {
	Action() Action
	command()
}

type ListAlertRules struct {
	InstitutionID string `json:"institutionId,omitempty" jsonschema:"institution to list, defaults to the caller's"`
}

type CreateAlertRule struct {
	InstitutionID  string   `json:"institutionId,omitempty" jsonschema:"owning institution, defaults to the caller's"`
	Name           string   `json:"name" jsonschema:"rule name"`
	Type           string   `json:"type" jsonschema:"late_arrival, absence, early_departure or custom"`
	Threshold      float64  `json:"threshold" jsonschema:"threshold, zero or more"`
	Unit           string   `json:"unit" jsonschema:"minutes, hours or days"`
	Comparison     string   `json:"comparison,omitempty" jsonschema:"greater_than (default), less_than or equals"`
	Email          bool     `json:"email,omitempty" jsonschema:"send emails"`
	Internal       bool     `json:"internal,omitempty" jsonschema:"create internal messages"`
	EmailTemplate  string   `json:"emailTemplate,omitempty" jsonschema:"message template with {placeholders}"`
	Recipients     []string `json:"recipients,omitempty" jsonschema:"user ids, email addresses or self"`
	Delay          int      `json:"delay,omitempty" jsonschema:"minutes to wait before notifying"`
	Repeat         bool     `json:"repeat,omitempty" jsonschema:"repeat until resolved"`
	RepeatInterval int      `json:"repeatInterval,omitempty" jsonschema:"minutes between repeats"`
	Disabled       bool     `json:"disabled,omitempty" jsonschema:"create the rule disabled"`
}

type ToggleAlertRule struct {
	RuleID  string `json:"ruleId" validate:"notblank" jsonschema:"rule identifier"`
	Enabled bool   `json:"enabled" jsonschema:"new enabled state"`
}

type DeleteAlertRule struct {
	RuleID string `json:"ruleId" validate:"notblank" jsonschema:"rule identifier"`
}

type GetAlertHistory struct {
	InstitutionID string `json:"institutionId,omitempty" jsonschema:"institution, defaults to the caller's"`
	RuleID        string `json:"ruleId,omitempty" jsonschema:"optional rule filter"`
	EmployeeID    string `json:"employeeId,omitempty" jsonschema:"optional employee filter"`
	Limit         int    `json:"limit,omitempty" validate:"gte=0" jsonschema:"maximum entries (default 50)"`
}

type SendEmail struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email" jsonschema:"recipient address"`
	Subject        string `json:"subject" validate:"notblank,max=500" jsonschema:"email subject"`
	Body           string `json:"body" validate:"notblank" jsonschema:"email body"`
}

type SendMessage struct {
	InstitutionID  string `json:"institutionId,omitempty" jsonschema:"institution, defaults to the caller's"`
	DepartmentName string `json:"departmentName" validate:"notblank" jsonschema:"department whose employees receive the message"`
	Message        string `json:"message" validate:"notblank" jsonschema:"message text"`
	Subject        string `json:"subject,omitempty" validate:"max=500" jsonschema:"optional subject"`
}

func (ListAlertRules) Action() Action  { return ActionListAlertRules }
func (CreateAlertRule) Action() Action { return ActionCreateAlertRule }
func (ToggleAlertRule) Action() Action { return ActionToggleAlertRule }
func (DeleteAlertRule) Action() Action { return ActionDeleteAlertRule }
func (GetAlertHistory) Action() Action { return ActionGetAlertHistory }
func (SendEmail) Action() Action       { return ActionSendEmail }
func (SendMessage) Action() Action     { return ActionSendMessage }

func (ListAlertRules) command()  {}
func (CreateAlertRule) command() {}
func (ToggleAlertRule) command() {}
func (DeleteAlertRule) command() {}
func (GetAlertHistory) command() {}
func (SendEmail) command()       {}
func (SendMessage) command()     {}

// Rule converts the command into an alert rule for institutionID.
func (c CreateAlertRule) Rule(institutionID string) *entities.AlertRule {
	comparison := c.Comparison
	if comparison == "" {
		comparison = alerting.ComparisonGreaterThan
	}
	recipients := entities.StringList(c.Recipients)
	if len(recipients) == 0 {
		recipients = entities.StringList{alerting.RecipientSelf}
	}
	return &entities.AlertRule{
		InstitutionID: institutionID,
		Name:          c.Name,
		Type:          c.Type,
		Enabled:       !c.Disabled,
		Condition: entities.AlertCondition{
			Threshold:  c.Threshold,
			Unit:       c.Unit,
			Comparison: comparison,
		},
		Notification: entities.AlertNotification{
			Email:         c.Email,
			Internal:      c.Internal,
			EmailTemplate: c.EmailTemplate,
			Recipients:    recipients,
		},
		Schedule: entities.AlertSchedule{
			Immediate:      c.Delay == 0,
			Delay:          c.Delay,
			Repeat:         c.Repeat,
			RepeatInterval: c.RepeatInterval,
		},
	}
}

// ParseCommand decodes params strictly into the command type of action.
// Empty params decode as an empty object.
func ParseCommand(action string, params json.RawMessage) (Command, error) {
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		params = json.RawMessage("{}")
	}

	switch Action(strings.TrimSpace(action)) {
	case ActionListAlertRules:
		return decode[ListAlertRules](params)
	case ActionCreateAlertRule:
		return decode[CreateAlertRule](params)
	case ActionToggleAlertRule:
		return decode[ToggleAlertRule](params)
	case ActionDeleteAlertRule:
		return decode[DeleteAlertRule](params)
	case ActionGetAlertHistory:
		return decode[GetAlertHistory](params)
	case ActionSendEmail:
		return decode[SendEmail](params)
	case ActionSendMessage:
		return decode[SendMessage](params)
	default:
		return nil, errors.Validation("unknown action "+action,
			errors.FieldError{Field: "action", Message: "action " + action + " is not supported"})
	}
}

func decode[T Command](params json.RawMessage) (Command, error) {
	var cmd T
	if err := validation.DecodeJSONBytes(params, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
