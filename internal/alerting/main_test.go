package alerting

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/datastore"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testLogger() logger.Logger {
	return logger.NewNop()
}

// mockAlertRuleRepo is a minimal in-memory mock of AlertRuleRepository.
type mockAlertRuleRepo struct {
	rules         []entities.AlertRule
	history       []*entities.AlertHistory
	deletedBefore []time.Time
	countErr      error
	mu            sync.Mutex
}

func newMockRepo(rules ...entities.AlertRule) *mockAlertRuleRepo {
	return &mockAlertRuleRepo{rules: rules}
}

func (m *mockAlertRuleRepo) GetEnabledRules(_ context.Context) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertRule
	for i := range m.rules {
		if m.rules[i].Enabled {
			out = append(out, m.rules[i])
		}
	}
	return out, nil
}

func (m *mockAlertRuleRepo) SaveHistory(_ context.Context, h *entities.AlertHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, h)
	return nil
}

func (m *mockAlertRuleRepo) savedHistory() []*entities.AlertHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.AlertHistory(nil), m.history...)
}

func (m *mockAlertRuleRepo) setRules(rules ...entities.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

func (m *mockAlertRuleRepo) DeleteHistoryBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedBefore = append(m.deletedBefore, before)
	var kept []*entities.AlertHistory
	var n int64
	for _, h := range m.history {
		if h.FiredAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	m.history = kept
	return n, nil
}

// Unused methods, present to satisfy the interface.
func (m *mockAlertRuleRepo) ListRules(_ context.Context, _ repository.AlertRuleFilter) ([]entities.AlertRule, error) {
	return []entities.AlertRule{}, nil
}
func (m *mockAlertRuleRepo) GetRule(_ context.Context, _ string) (*entities.AlertRule, error) {
	return nil, repository.ErrAlertRuleNotFound
}
func (m *mockAlertRuleRepo) CreateRule(_ context.Context, _ *entities.AlertRule) error { return nil }
func (m *mockAlertRuleRepo) UpdateRule(_ context.Context, _ *entities.AlertRule) error { return nil }
func (m *mockAlertRuleRepo) DeleteRule(_ context.Context, _ string) error              { return nil }
func (m *mockAlertRuleRepo) ToggleRule(_ context.Context, _ string, _ bool) error      { return nil }
func (m *mockAlertRuleRepo) ListHistory(_ context.Context, _ repository.AlertHistoryFilter) ([]entities.AlertHistory, int64, error) {
	return nil, 0, nil
}
func (m *mockAlertRuleRepo) CountRulesByName(_ context.Context, _, _ string) (int64, error) {
	return 0, m.countErr
}

// mockDispatcher records deliveries.
type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

type dispatchCall struct {
	ruleID     string
	employeeID string
	attempt    int
}

func (m *mockDispatcher) Dispatch(_ context.Context, rule *entities.AlertRule, event *TriggerEvent, attempt int) (*DeliveryReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatchCall{ruleID: rule.ID, employeeID: event.EmployeeID, attempt: attempt})
	report := &DeliveryReport{
		Attempt:    attempt,
		Subject:    "Alerta: " + rule.Name,
		Recipients: ResolveRecipients(rule.Notification.Recipients, event.EmployeeID),
	}
	if m.err != nil {
		report.InternalFailed = 1
		return report, m.err
	}
	report.InternalSent = len(report.Recipients)
	return report, nil
}

func (m *mockDispatcher) recorded() []dispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatchCall(nil), m.calls...)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// lateRule is an enabled late-arrival rule firing above 15 minutes.
func lateRule(id, institutionID string) entities.AlertRule {
	return entities.AlertRule{
		ID:            id,
		InstitutionID: institutionID,
		Name:          "Retard " + id,
		Type:          RuleTypeLateArrival,
		Enabled:       true,
		Condition: entities.AlertCondition{
			Threshold:  15,
			Unit:       UnitMinutes,
			Comparison: ComparisonGreaterThan,
		},
		Notification: entities.AlertNotification{
			Internal:   true,
			Recipients: entities.StringList{RecipientSelf},
		},
		Schedule: entities.AlertSchedule{Immediate: true},
	}
}

// newSQLiteRepo returns a repository on an isolated in-memory database.
func newSQLiteRepo(t *testing.T) repository.AlertRuleRepository {
	t.Helper()
	db, err := datastore.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })
	return repository.NewAlertRuleRepository(db)
}

func sortedIDs(rules []entities.AlertRule) []string {
	ids := make([]string, 0, len(rules))
	for i := range rules {
		ids = append(ids, rules[i].ID)
	}
	sort.Strings(ids)
	return ids
}
