package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"gorm.io/gorm"
)

// alertRuleRepository implements AlertRuleRepository.
type alertRuleRepository struct {
	db *gorm.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *gorm.DB) AlertRuleRepository {
	return &alertRuleRepository{db: db}
}

// ListRules returns alert rules matching the given filter, oldest first.
func (r *alertRuleRepository) ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	query := r.db.WithContext(ctx)

	if filter.InstitutionID != "" {
		query = query.Where("institution_id = ?", filter.InstitutionID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}

	if err := query.Order("created_at ASC").Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single alert rule by ID.
// Returns ErrAlertRuleNotFound if the rule does not exist.
func (r *alertRuleRepository) GetRule(ctx context.Context, id string) (*entities.AlertRule, error) {
	var rule entities.AlertRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule %s: %w", id, err)
	}
	return &rule, nil
}

func (r *alertRuleRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// UpdateRule writes every column of an existing rule.
func (r *alertRuleRepository) UpdateRule(ctx context.Context, rule *entities.AlertRule) error {
	if rule.ID == "" {
		return fmt.Errorf("failed to update alert rule: missing rule ID")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.AlertRule{}).Where("id = ?", rule.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check alert rule %s: %w", rule.ID, err)
		}
		if count == 0 {
			return ErrAlertRuleNotFound
		}
		// Select("*") writes zero values such as enabled=false and delay=0.
		err := tx.Model(&entities.AlertRule{}).
			Where("id = ?", rule.ID).
			Select("*").
			Omit("id", "created_at").
			Updates(rule).Error
		if err != nil {
			return fmt.Errorf("failed to update alert rule %s: %w", rule.ID, err)
		}
		return nil
	})
}

// DeleteRule hard-deletes a rule. History rows are kept.
func (r *alertRuleRepository) DeleteRule(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.AlertRule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

func (r *alertRuleRepository) ToggleRule(ctx context.Context, id string, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

func (r *alertRuleRepository) GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	enabled := true
	return r.ListRules(ctx, AlertRuleFilter{Enabled: &enabled})
}

// CountRulesByName returns the number of rules with the given name in an institution.
func (r *alertRuleRepository) CountRulesByName(ctx context.Context, institutionID, name string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.AlertRule{}).
		Where("institution_id = ? AND name = ?", institutionID, name).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count rules by name: %w", err)
	}
	return count, nil
}

func (r *alertRuleRepository) SaveHistory(ctx context.Context, history *entities.AlertHistory) error {
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("failed to save alert history: %w", err)
	}
	return nil
}

// ListHistory returns alert history entries matching the filter, newest
// first, together with the unpaginated total.
func (r *alertRuleRepository) ListHistory(ctx context.Context, filter AlertHistoryFilter) ([]entities.AlertHistory, int64, error) {
	var items []entities.AlertHistory
	var total int64

	scoped := func(q *gorm.DB) *gorm.DB {
		if filter.InstitutionID != "" {
			q = q.Where("institution_id = ?", filter.InstitutionID)
		}
		if filter.RuleID != "" {
			q = q.Where("rule_id = ?", filter.RuleID)
		}
		if filter.EmployeeID != "" {
			q = q.Where("employee_id = ?", filter.EmployeeID)
		}
		if !filter.Since.IsZero() {
			q = q.Where("fired_at >= ?", filter.Since)
		}
		if !filter.Until.IsZero() {
			q = q.Where("fired_at < ?", filter.Until)
		}
		return q
	}

	if err := r.db.WithContext(ctx).Model(&entities.AlertHistory{}).Scopes(scoped).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert history: %w", err)
	}

	query := r.db.WithContext(ctx).Scopes(scoped).Order("fired_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert history: %w", err)
	}
	return items, total, nil
}

// DeleteHistoryBefore deletes alert history entries older than the given time.
func (r *alertRuleRepository) DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("fired_at < ?", before).Delete(&entities.AlertHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete alert history before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
