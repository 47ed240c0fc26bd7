package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/auth"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/validation"
)

const (
	componentExecutor = "mcp-executor"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	defaultMessageSubject = "Comunicat de l'administració"
)

// RuleListResult is returned by listAlertRules.
type RuleListResult struct {
	InstitutionID string               `json:"institutionId"`
	Rules         []entities.AlertRule `json:"rules"`
	Count         int                  `json:"count"`
}

// HistoryResult is returned by getAlertHistory.
type HistoryResult struct {
	History []entities.AlertHistory `json:"history"`
	Total   int64                   `json:"total"`
	Limit   int                     `json:"limit"`
}

// MessageResult is returned by the delete and send actions.
type MessageResult struct {
	Message   string `json:"message"`
	SentCount int    `json:"sentCount,omitempty"`
}

// Executor runs commands on behalf of an authenticated administrator.
// Every command is scoped to an institution the caller may access.
type Executor struct {
	rules          *alerting.RuleStore
	history        repository.AlertRuleRepository
	employees      repository.EmployeeRepository
	communications repository.CommunicationRepository
	email          notification.EmailSender
	validate       *validation.Validator
	log            logger.Logger
}

// ExecutorDeps are the collaborators of an Executor. Email may be nil.
type ExecutorDeps struct {
	Rules          *alerting.RuleStore
	History        repository.AlertRuleRepository
	Employees      repository.EmployeeRepository
	Communications repository.CommunicationRepository
	Email          notification.EmailSender
}

// NewExecutor creates an Executor.
func NewExecutor(deps ExecutorDeps, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{
		rules:          deps.Rules,
		history:        deps.History,
		employees:      deps.Employees,
		communications: deps.Communications,
		email:          deps.Email,
		validate:       validation.New(),
		log:            log.Module("mcp"),
	}
}

// Run parses and executes action with params.
func (e *Executor) Run(ctx context.Context, user *auth.User, action string, params []byte) (any, error) {
	cmd, err := ParseCommand(action, params)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, user, cmd)
}

// Execute runs cmd for user.
func (e *Executor) Execute(ctx context.Context, user *auth.User, cmd Command) (any, error) {
	if !user.IsAdmin() {
		return nil, errors.Forbidden("administrator role required")
	}
	if err := e.validate.Struct(cmd); err != nil {
		return nil, err
	}

	e.log.Info("executing command",
		logger.String("action", string(cmd.Action())),
		logger.String("user_id", user.ID),
		logger.String("role", string(user.Role)))

	switch c := cmd.(type) {
	case ListAlertRules:
		return e.listAlertRules(ctx, user, c)
	case CreateAlertRule:
		return e.createAlertRule(ctx, user, c)
	case ToggleAlertRule:
		return e.toggleAlertRule(ctx, user, c)
	case DeleteAlertRule:
		return e.deleteAlertRule(ctx, user, c)
	case GetAlertHistory:
		return e.getAlertHistory(ctx, user, c)
	case SendEmail:
		return e.sendEmail(ctx, c)
	case SendMessage:
		return e.sendMessage(ctx, user, c)
	default:
		return nil, errors.Validation(fmt.Sprintf("unsupported command %T", cmd))
	}
}

func (e *Executor) listAlertRules(ctx context.Context, user *auth.User, c ListAlertRules) (*RuleListResult, error) {
	institutionID, err := user.Scope(c.InstitutionID)
	if err != nil {
		return nil, err
	}
	rules, err := e.rules.List(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	return &RuleListResult{InstitutionID: institutionID, Rules: rules, Count: len(rules)}, nil
}

func (e *Executor) createAlertRule(ctx context.Context, user *auth.User, c CreateAlertRule) (*entities.AlertRule, error) {
	institutionID, err := user.Scope(c.InstitutionID)
	if err != nil {
		return nil, err
	}
	return e.rules.Create(ctx, c.Rule(institutionID))
}

// ownedRule loads a rule and checks the caller may act on its institution.
func (e *Executor) ownedRule(ctx context.Context, user *auth.User, id string) (*entities.AlertRule, error) {
	rule, err := e.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.CanAccess(rule.InstitutionID) {
		return nil, errors.Forbidden("access to alert rule %s denied", id)
	}
	return rule, nil
}

func (e *Executor) toggleAlertRule(ctx context.Context, user *auth.User, c ToggleAlertRule) (*entities.AlertRule, error) {
	if _, err := e.ownedRule(ctx, user, c.RuleID); err != nil {
		return nil, err
	}
	return e.rules.Toggle(ctx, c.RuleID, c.Enabled)
}

func (e *Executor) deleteAlertRule(ctx context.Context, user *auth.User, c DeleteAlertRule) (*MessageResult, error) {
	rule, err := e.ownedRule(ctx, user, c.RuleID)
	if err != nil {
		return nil, err
	}
	if err := e.rules.Delete(ctx, c.RuleID); err != nil {
		return nil, err
	}
	return &MessageResult{Message: fmt.Sprintf("Alert rule %q deleted", rule.Name)}, nil
}

func (e *Executor) getAlertHistory(ctx context.Context, user *auth.User, c GetAlertHistory) (*HistoryResult, error) {
	institutionID, err := user.Scope(c.InstitutionID)
	if err != nil {
		return nil, err
	}
	limit := c.Limit
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	items, total, err := e.history.ListHistory(ctx, repository.AlertHistoryFilter{
		InstitutionID: institutionID,
		RuleID:        c.RuleID,
		EmployeeID:    c.EmployeeID,
		Limit:         limit,
	})
	if err != nil {
		return nil, errors.Dependency(componentExecutor, err)
	}
	if items == nil {
		items = []entities.AlertHistory{}
	}
	return &HistoryResult{History: items, Total: total, Limit: limit}, nil
}

func (e *Executor) sendEmail(ctx context.Context, c SendEmail) (*MessageResult, error) {
	if e.email == nil {
		return nil, errors.Newf("email delivery is not configured").
			Category(errors.CategoryDependency).
			Component(componentExecutor).
			Build()
	}
	msg := notification.NewEmailMessage("", strings.TrimSpace(c.RecipientEmail), c.Subject, c.Body)
	if err := e.email.Send(ctx, msg); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDependency).
			Component(componentExecutor).
			Context("recipient", msg.To.Address).
			Build()
	}
	return &MessageResult{Message: "Email sent to " + msg.To.Address, SentCount: 1}, nil
}

func (e *Executor) sendMessage(ctx context.Context, user *auth.User, c SendMessage) (*MessageResult, error) {
	institutionID, err := user.Scope(c.InstitutionID)
	if err != nil {
		return nil, err
	}
	department := strings.TrimSpace(c.DepartmentName)
	employees, err := e.employees.ListByDepartment(ctx, institutionID, department)
	if err != nil {
		return nil, errors.Dependency(componentExecutor, err)
	}
	if len(employees) == 0 {
		return &MessageResult{Message: fmt.Sprintf("No employees found in department %q, no messages sent", department)}, nil
	}

	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		subject = defaultMessageSubject
	}

	var sent int
	var errs []error
	for i := range employees {
		msg := &entities.Communication{
			InstitutionID: institutionID,
			SenderID:      user.ID,
			RecipientID:   employees[i].ID,
			MessageType:   entities.MessageTypeMessage,
			Subject:       subject,
			Message:       c.Message,
			Status:        entities.CommunicationStatusSent,
			Priority:      entities.PriorityNormal,
		}
		if err := e.communications.Create(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", employees[i].ID, err))
			continue
		}
		sent++
	}
	if len(errs) > 0 {
		e.log.Warn("some department messages were not stored",
			logger.String("department", department),
			logger.Int("sent", sent),
			logger.Int("failed", len(errs)))
		if sent == 0 {
			return nil, errors.Dependency(componentExecutor, errors.Join(errs...))
		}
	}

	return &MessageResult{
		Message:   fmt.Sprintf("Message sent to %d employee(s) of department %q", sent, department),
		SentCount: sent,
	}, nil
}
