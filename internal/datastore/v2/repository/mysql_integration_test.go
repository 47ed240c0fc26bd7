//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mysqlContainer *containers.MySQLContainer

func TestMain(m *testing.M) {
	ctx := context.Background() //nolint:gocritic // TestMain has no *testing.T for t.Context()

	var err error
	mysqlContainer, err = containers.NewMySQLContainer(ctx)
	if err != nil {
		panic("failed to create MySQL container: " + err.Error())
	}

	code := m.Run()

	_ = mysqlContainer.Terminate(context.Background()) //nolint:gocritic // TestMain has no *testing.T for t.Context()
	os.Exit(code)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	require.NoError(t, mysqlContainer.Reset(t.Context(), "alert_rules", "alert_history", "communications", "employees"))
}

func mysqlRule(institutionID, name string) *entities.AlertRule {
	return &entities.AlertRule{
		InstitutionID: institutionID,
		Name:          name,
		Type:          "late_arrival",
		Enabled:       true,
		Condition:     entities.AlertCondition{Threshold: 15, Unit: "minutes", Comparison: "greater_than"},
		Notification: entities.AlertNotification{
			Email:      true,
			Internal:   true,
			Recipients: entities.StringList{"self", "admin-1"},
		},
		Schedule: entities.AlertSchedule{Immediate: true, RepeatInterval: 60},
	}
}

func TestMySQL_FlattenedColumns(t *testing.T) {
	resetDatabase(t)
	db := mysqlContainer.DB(t)
	repo := repository.NewAlertRuleRepository(db)

	rule := mysqlRule("inst-1", "Retard")
	require.NoError(t, repo.CreateRule(t.Context(), rule))

	var row struct {
		ConditionThreshold     float64
		ConditionUnit          string
		NotificationRecipients string
		ScheduleRepeatInterval int
	}
	require.NoError(t, db.Raw(
		"SELECT condition_threshold, condition_unit, notification_recipients, schedule_repeat_interval FROM alert_rules WHERE id = ?",
		rule.ID).Scan(&row).Error)
	assert.InDelta(t, 15.0, row.ConditionThreshold, 1e-9)
	assert.Equal(t, "minutes", row.ConditionUnit)
	assert.Equal(t, `{"self","admin-1"}`, row.NotificationRecipients)
	assert.Equal(t, 60, row.ScheduleRepeatInterval)

	got, err := repo.GetRule(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StringList{"self", "admin-1"}, got.Notification.Recipients)
}

func TestMySQL_UpdateWritesZeroValues(t *testing.T) {
	resetDatabase(t)
	repo := repository.NewAlertRuleRepository(mysqlContainer.DB(t))

	rule := mysqlRule("inst-1", "Retard")
	require.NoError(t, repo.CreateRule(t.Context(), rule))

	rule.Enabled = false
	rule.Schedule.RepeatInterval = 0
	rule.Notification.Recipients = entities.StringList{}
	require.NoError(t, repo.UpdateRule(t.Context(), rule))

	got, err := repo.GetRule(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Zero(t, got.Schedule.RepeatInterval)
	assert.Empty(t, got.Notification.Recipients)
}

func TestMySQL_DeleteTwice(t *testing.T) {
	resetDatabase(t)
	repo := repository.NewAlertRuleRepository(mysqlContainer.DB(t))

	rule := mysqlRule("inst-1", "Retard")
	require.NoError(t, repo.CreateRule(t.Context(), rule))
	require.NoError(t, repo.DeleteRule(t.Context(), rule.ID))
	require.ErrorIs(t, repo.DeleteRule(t.Context(), rule.ID), repository.ErrAlertRuleNotFound)
}

func TestMySQL_InstitutionScopedListing(t *testing.T) {
	resetDatabase(t)
	repo := repository.NewAlertRuleRepository(mysqlContainer.DB(t))

	require.NoError(t, repo.CreateRule(t.Context(), mysqlRule("inst-a", "A1")))
	require.NoError(t, repo.CreateRule(t.Context(), mysqlRule("inst-a", "A2")))
	require.NoError(t, repo.CreateRule(t.Context(), mysqlRule("inst-b", "B1")))

	rules, err := repo.ListRules(t.Context(), repository.AlertRuleFilter{InstitutionID: "inst-a"})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	for i := range rules {
		assert.Equal(t, "inst-a", rules[i].InstitutionID)
	}

	n, err := repo.CountRulesByName(t.Context(), "inst-b", "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMySQL_HistoryRetention(t *testing.T) {
	resetDatabase(t)
	repo := repository.NewAlertRuleRepository(mysqlContainer.DB(t))
	now := time.Now().UTC().Truncate(time.Second)

	for i, age := range []time.Duration{0, 24 * time.Hour, 100 * 24 * time.Hour} {
		require.NoError(t, repo.SaveHistory(t.Context(), &entities.AlertHistory{
			RuleID:        "rule-1",
			InstitutionID: "inst-1",
			EmployeeID:    "emp-1",
			Type:          "late_arrival",
			Attempt:       i + 1,
			Status:        entities.DeliveryStatusSent,
			FiredAt:       now.Add(-age),
		}))
	}

	deleted, err := repo.DeleteHistoryBefore(t.Context(), now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	items, total, err := repo.ListHistory(t.Context(), repository.AlertHistoryFilter{InstitutionID: "inst-1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempt, "newest first")
}
