// Package alerting provides the staff attendance alert rules engine.
package alerting

import "github.com/edupresencia/fichai/internal/validation"

// Rule types define which attendance incident a rule watches.
const (
	RuleTypeLateArrival    = validation.RuleTypeLateArrival
	RuleTypeAbsence        = validation.RuleTypeAbsence
	RuleTypeEarlyDeparture = validation.RuleTypeEarlyDeparture
	RuleTypeCustom         = validation.RuleTypeCustom
)

// Units used by rule conditions and trigger events.
const (
	UnitMinutes = validation.UnitMinutes
	UnitHours   = validation.UnitHours
	UnitDays    = validation.UnitDays
)

// Condition comparisons.
const (
	ComparisonGreaterThan = "greater_than"
	ComparisonLessThan    = "less_than"
	ComparisonEquals      = "equals"
)

// Decisions reported in a NotificationOutcome.
const (
	DecisionFire     = "fire"
	DecisionSuppress = "suppress"
)

// Suppression reasons.
const (
	ReasonDisabled        = "disabled"
	ReasonConditionNotMet = "condition_not_met"
	ReasonInvalidUnit     = "invalid_unit"
	ReasonDuplicate       = "duplicate"
	ReasonResolved        = "resolved"
)

// RecipientSelf in a rule's recipient list stands for the employee that
// triggered the event.
const RecipientSelf = "self"

// Template placeholders.
const (
	PlaceholderEmployeeName  = "{employeeName}"
	PlaceholderEmployeeID    = "{employeeId}"
	PlaceholderDelayMinutes  = "{delayMinutes}"
	PlaceholderMeasuredValue = "{measuredValue}"
	PlaceholderMeasuredUnit  = "{measuredUnit}"
	PlaceholderThreshold     = "{threshold}"
	PlaceholderUnit          = "{unit}"
	PlaceholderRuleName      = "{ruleName}"
	PlaceholderRuleType      = "{ruleType}"
	PlaceholderDate          = "{date}"
	PlaceholderTime          = "{time}"
	PlaceholderInstitutionID = "{institutionId}"
)

// Placeholders lists every placeholder the dispatcher substitutes.
func Placeholders() []string {
	return []string{
		PlaceholderEmployeeName,
		PlaceholderEmployeeID,
		PlaceholderDelayMinutes,
		PlaceholderMeasuredValue,
		PlaceholderMeasuredUnit,
		PlaceholderThreshold,
		PlaceholderUnit,
		PlaceholderRuleName,
		PlaceholderRuleType,
		PlaceholderDate,
		PlaceholderTime,
		PlaceholderInstitutionID,
	}
}
