package alerting

import (
	"testing"

	"github.com/edupresencia/fichai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_RedisDedupNeedsClient(t *testing.T) {
	settings := testSettings()
	settings.Alerting.Dedup = "redis"

	_, err := Initialize(t.Context(), settings, Dependencies{Rules: newMockRepo()}, testLogger())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestInitialize_InvalidCleanupSchedule(t *testing.T) {
	settings := testSettings()
	settings.Alerting.HistoryCleanupSchedule = "every day"
	settings.Alerting.HistoryRetention = 3600

	_, err := Initialize(t.Context(), settings, Dependencies{Rules: newMockRepo()}, testLogger())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
	assert.Contains(t, errors.FieldsOf(err)[0].Field, "historyCleanupSchedule")
}

func TestInitialize_LoadsEnabledRules(t *testing.T) {
	disabled := lateRule("r2", "inst-1")
	disabled.Enabled = false
	repo := newMockRepo(lateRule("r1", "inst-1"), disabled)

	rt, err := Initialize(t.Context(), testSettings(), Dependencies{Rules: repo}, testLogger())
	require.NoError(t, err)
	defer rt.Stop()

	assert.Equal(t, 1, rt.Engine.RuleCount())
	assert.NotNil(t, rt.Store)
	assert.NotNil(t, rt.Dispatcher)
}
