package alerting

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/robfig/cron/v3"
)

const (
	// saveHistoryTimeout is the context deadline for persisting alert history.
	saveHistoryTimeout = 3 * time.Second
	// cleanupTimeout is the context deadline for the periodic history deletion.
	cleanupTimeout = 30 * time.Second
	// dedupTTL outlives the calendar day carried in the dedup key.
	dedupTTL = 48 * time.Hour
)

// RuleDispatcher delivers a fired rule.
type RuleDispatcher interface {
	Dispatch(ctx context.Context, rule *entities.AlertRule, event *TriggerEvent, attempt int) (*DeliveryReport, error)
}

// NotificationOutcome is the engine's decision for one rule and event.
type NotificationOutcome struct {
	RuleID        string          `json:"ruleId"`
	RuleName      string          `json:"ruleName"`
	InstitutionID string          `json:"institutionId"`
	EmployeeID    string          `json:"employeeId"`
	Type          string          `json:"type"`
	Decision      string          `json:"decision"`
	Reason        string          `json:"reason,omitempty"`
	Attempt       int             `json:"attempt,omitempty"`
	Scheduled     bool            `json:"scheduled,omitempty"`
	DueAt         *time.Time      `json:"dueAt,omitempty"`
	Report        *DeliveryReport `json:"report,omitempty"`
	Error         string          `json:"error,omitempty"`
	At            time.Time       `json:"at"`
}

// Fired reports whether the rule fired.
func (o NotificationOutcome) Fired() bool {
	return o.Decision == DecisionFire
}

// OutcomeFunc observes engine outcomes, e.g. the websocket hub and metrics.
type OutcomeFunc func(outcome NotificationOutcome)

// Engine evaluates trigger events against the cached enabled rules.
type Engine struct {
	repo       repository.AlertRuleRepository
	dispatcher RuleDispatcher
	scheduler  *Scheduler
	cooldowns  CooldownStore
	log        logger.Logger
	now        func() time.Time

	rules   []entities.AlertRule
	rulesMu sync.RWMutex

	observers   []OutcomeFunc
	observersMu sync.RWMutex

	cron   *cron.Cron
	cronMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithScheduler enables delayed and repeating deliveries.
func WithScheduler(s *Scheduler) EngineOption {
	return func(e *Engine) { e.scheduler = s }
}

// WithCooldownStore replaces the in-memory dedup store.
func WithCooldownStore(s CooldownStore) EngineOption {
	return func(e *Engine) { e.cooldowns = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new alerting rules engine.
func NewEngine(repo repository.AlertRuleRepository, dispatcher RuleDispatcher, log logger.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		repo:       repo,
		dispatcher: dispatcher,
		cooldowns:  NewMemoryCooldownStore(),
		log:        log.Module("alerting.engine"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler != nil {
		e.scheduler.setDeliver(e.deliverScheduled)
	}
	return e
}

// Subscribe registers an outcome observer.
func (e *Engine) Subscribe(fn OutcomeFunc) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) notify(outcomes ...NotificationOutcome) {
	e.observersMu.RLock()
	observers := make([]OutcomeFunc, len(e.observers))
	copy(observers, e.observers)
	e.observersMu.RUnlock()

	for i := range outcomes {
		for _, fn := range observers {
			fn(outcomes[i])
		}
	}
}

// Scheduler returns the engine's scheduler, or nil.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// RefreshRules reloads enabled rules from the database.
// Call this on startup and whenever rules are modified via API.
func (e *Engine) RefreshRules(ctx context.Context) error {
	rules, err := e.repo.GetEnabledRules(ctx)
	if err != nil {
		return errors.Dependency("alert-engine", err)
	}
	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()
	return nil
}

// RuleCount returns the number of cached enabled rules.
func (e *Engine) RuleCount() int {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return len(e.rules)
}

func (e *Engine) cachedRule(id string) (entities.AlertRule, bool) {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	for i := range e.rules {
		if e.rules[i].ID == id {
			return e.rules[i], true
		}
	}
	return entities.AlertRule{}, false
}

// EvaluateRule decides whether rule fires for event, without side effects.
// A disabled rule is suppressed before its condition is looked at.
func (e *Engine) EvaluateRule(rule *entities.AlertRule, event *TriggerEvent) NotificationOutcome {
	out := NotificationOutcome{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		InstitutionID: rule.InstitutionID,
		EmployeeID:    event.EmployeeID,
		Type:          rule.Type,
		Decision:      DecisionSuppress,
		At:            e.now(),
	}
	if !rule.Enabled {
		out.Reason = ReasonDisabled
		return out
	}
	if rule.InstitutionID != event.InstitutionID || rule.Type != event.Type {
		out.Reason = ReasonConditionNotMet
		return out
	}

	unit := event.MeasuredUnit
	if unit == "" {
		unit = rule.Condition.Unit
	}
	ok, err := EvaluateCondition(rule.Condition, event.MeasuredValue, unit)
	switch {
	case err != nil:
		out.Reason = ReasonInvalidUnit
	case !ok:
		out.Reason = ReasonConditionNotMet
	default:
		out.Decision = DecisionFire
	}
	return out
}

// HandleEvent evaluates an event against the enabled rules of its
// institution and type, then delivers or schedules every rule that fires.
// A resolved event cancels the incident's pending deliveries instead.
func (e *Engine) HandleEvent(ctx context.Context, event *TriggerEvent) []NotificationOutcome {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	if event.Resolved {
		e.resolve(event)
		return nil
	}

	e.rulesMu.RLock()
	var rules []entities.AlertRule
	for i := range e.rules {
		if e.rules[i].InstitutionID == event.InstitutionID && e.rules[i].Type == event.Type {
			rules = append(rules, e.rules[i])
		}
	}
	e.rulesMu.RUnlock()

	outcomes := make([]NotificationOutcome, 0, len(rules))
	for i := range rules {
		rule := &rules[i]
		out := e.EvaluateRule(rule, event)
		if out.Fired() {
			e.fire(ctx, rule, event, &out)
		}
		outcomes = append(outcomes, out)
	}

	e.notify(outcomes...)
	return outcomes
}

func (e *Engine) resolve(event *TriggerEvent) {
	if e.scheduler == nil {
		return
	}
	if n := e.scheduler.Cancel(event.InstitutionID, event.EmployeeID, event.Type); n > 0 {
		e.log.Info("pending alerts cancelled by resolution",
			logger.String("employee_id", event.EmployeeID),
			logger.String("type", event.Type),
			logger.Int("cancelled", n))
	}
}

// fire deduplicates, then delivers now or hands the delivery to the
// scheduler. It updates out in place.
func (e *Engine) fire(ctx context.Context, rule *entities.AlertRule, event *TriggerEvent, out *NotificationOutcome) {
	key := dedupKey(rule.ID, event)
	acquired, err := e.cooldowns.Acquire(ctx, key, dedupTTL)
	if err != nil {
		// fail open
		e.log.Warn("alert dedup store unavailable", logger.String("key", key), logger.Error(err))
		acquired = true
	}
	if !acquired {
		out.Decision = DecisionSuppress
		out.Reason = ReasonDuplicate
		return
	}

	job := &Job{Key: key, Rule: *rule, Event: *event, Attempt: 1}
	if e.scheduler != nil && !rule.Schedule.Immediate && rule.Schedule.Delay > 0 {
		job.DueAt = event.OccurredAt.Add(time.Duration(rule.Schedule.Delay) * time.Minute)
		e.scheduler.Schedule(job)
		out.Scheduled = true
		out.DueAt = &job.DueAt
		return
	}

	out.Attempt = 1
	report, err := e.deliver(ctx, rule, event, 1)
	out.Report = report
	if err != nil {
		out.Error = err.Error()
	}
	if e.scheduler != nil {
		if next := e.scheduler.next(job, e.now()); next != nil {
			e.scheduler.Schedule(next)
		}
	}
}

// deliverScheduled runs a due job against the current version of its rule.
// Jobs of rules that were deleted or disabled are dropped.
func (e *Engine) deliverScheduled(ctx context.Context, job *Job) bool {
	rule, ok := e.cachedRule(job.Rule.ID)
	if !ok {
		e.log.Debug("dropping scheduled alert for inactive rule", logger.String("rule_id", job.Rule.ID))
		return false
	}
	job.Rule = rule

	out := NotificationOutcome{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		InstitutionID: rule.InstitutionID,
		EmployeeID:    job.Event.EmployeeID,
		Type:          rule.Type,
		Decision:      DecisionFire,
		Attempt:       job.Attempt,
		At:            e.now(),
	}
	report, err := e.deliver(ctx, &rule, &job.Event, job.Attempt)
	out.Report = report
	if err != nil {
		out.Error = err.Error()
	}
	e.notify(out)
	return true
}

// deliver dispatches and records history.
func (e *Engine) deliver(ctx context.Context, rule *entities.AlertRule, event *TriggerEvent, attempt int) (*DeliveryReport, error) {
	report, err := e.dispatcher.Dispatch(ctx, rule, event, attempt)
	if err != nil {
		e.log.Error("alert delivery failed",
			logger.String("rule_id", rule.ID),
			logger.String("employee_id", event.EmployeeID),
			logger.Int("attempt", attempt),
			logger.Error(err))
	}
	if report == nil {
		report = &DeliveryReport{Attempt: attempt}
	}
	status := report.Status()
	if err != nil && status == entities.DeliveryStatusSent {
		status = entities.DeliveryStatusFailed
	}

	delay := event.MeasuredValue
	if m, convErr := ToMinutes(event.MeasuredValue, event.MeasuredUnit); convErr == nil {
		delay = m
	}
	history := &entities.AlertHistory{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		InstitutionID: rule.InstitutionID,
		EmployeeID:    event.EmployeeID,
		EmployeeName:  event.EmployeeName,
		Type:          rule.Type,
		Subject:       report.Subject,
		Content:       report.Body,
		MeasuredValue: event.MeasuredValue,
		MeasuredUnit:  event.MeasuredUnit,
		DelayMinutes:  delay,
		Attempt:       attempt,
		Recipients:    report.Recipients,
		InternalSent:  report.InternalSent,
		EmailSent:     report.EmailSent,
		EmailFailed:   report.EmailFailed,
		EmailSkipped:  len(report.EmailSkipped),
		Status:        status,
		FiredAt:       e.now(),
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveHistoryTimeout)
	defer cancel()
	if herr := e.repo.SaveHistory(saveCtx, history); herr != nil {
		e.log.Error("failed to save alert history",
			logger.String("rule_id", rule.ID),
			logger.Error(herr))
	}
	return report, err
}

// TestFireRule delivers a rule for an employee, bypassing condition
// evaluation and deduplication. Used by the test endpoint.
func (e *Engine) TestFireRule(ctx context.Context, rule *entities.AlertRule, employeeID string) (*DeliveryReport, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, errors.Validation("employeeId is required",
			errors.FieldError{Field: "employeeId", Message: "employeeId is required"})
	}
	event := &TriggerEvent{
		EmployeeID:    employeeID,
		InstitutionID: rule.InstitutionID,
		Type:          rule.Type,
		MeasuredValue: rule.Condition.Threshold,
		MeasuredUnit:  rule.Condition.Unit,
		OccurredAt:    e.now(),
	}
	return e.deliver(ctx, rule, event, 1)
}

// purger is implemented by cooldown stores that need periodic cleanup.
type purger interface {
	Purge()
}

// StartHistoryCleanup deletes history older than retention on the given
// cron schedule. A zero retention disables cleanup.
func (e *Engine) StartHistoryCleanup(schedule string, retention time.Duration) error {
	if retention <= 0 || schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { e.CleanupHistory(context.Background(), retention) }); err != nil {
		return errors.Validation("invalid history cleanup schedule: "+err.Error(),
			errors.FieldError{Field: "alerting.historyCleanupSchedule", Message: err.Error()})
	}

	e.stopCleanup()
	e.cronMu.Lock()
	e.cron = c
	e.cronMu.Unlock()
	c.Start()
	return nil
}

// CleanupHistory deletes history rows older than retention and purges
// expired dedup keys.
func (e *Engine) CleanupHistory(ctx context.Context, retention time.Duration) int64 {
	if p, ok := e.cooldowns.(purger); ok {
		p.Purge()
	}
	cutoff := e.now().Add(-retention)
	cleanupCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()
	deleted, err := e.repo.DeleteHistoryBefore(cleanupCtx, cutoff)
	if err != nil {
		e.log.Error("alert history cleanup failed", logger.Error(err))
		return 0
	}
	if deleted > 0 {
		e.log.Info("alert history cleanup completed",
			logger.Int64("deleted", deleted),
			logger.Time("cutoff", cutoff))
	}
	return deleted
}

func (e *Engine) stopCleanup() {
	e.cronMu.Lock()
	c := e.cron
	e.cron = nil
	e.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Stop shuts down background work: the history cleanup and the scheduler.
func (e *Engine) Stop() {
	e.stopCleanup()
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
}
