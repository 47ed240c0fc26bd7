package repository

import (
	"context"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
)

// AlertRuleRepository handles alert rule CRUD and history operations.
type AlertRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id string) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	UpdateRule(ctx context.Context, rule *entities.AlertRule) error
	DeleteRule(ctx context.Context, id string) error
	ToggleRule(ctx context.Context, id string, enabled bool) error

	// GetEnabledRules returns the enabled rules of every institution.
	GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error)
	CountRulesByName(ctx context.Context, institutionID, name string) (int64, error)

	// History
	SaveHistory(ctx context.Context, history *entities.AlertHistory) error
	ListHistory(ctx context.Context, filter AlertHistoryFilter) ([]entities.AlertHistory, int64, error)
	DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	InstitutionID string
	Type          string
	Enabled       *bool
}

// AlertHistoryFilter controls history listing queries.
type AlertHistoryFilter struct {
	InstitutionID string
	RuleID        string
	EmployeeID    string
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}
