package alerting

import (
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
)

// DefaultRules returns the starter rules for an institution, named in the
// given language. Empty email templates fall back to the language default
// at dispatch time. Seeded by RuleStore.SeedDefaults.
func DefaultRules(institutionID, lang string) []entities.AlertRule {
	return []entities.AlertRule{
		{
			InstitutionID: institutionID,
			Name:          defaultRuleName(lang, RuleTypeLateArrival),
			Type:          RuleTypeLateArrival,
			Enabled:       true,
			Condition: entities.AlertCondition{
				Threshold:  15,
				Unit:       UnitMinutes,
				Comparison: ComparisonGreaterThan,
			},
			Notification: entities.AlertNotification{
				Email:      true,
				Internal:   true,
				Recipients: entities.StringList{RecipientSelf},
			},
			Schedule: entities.AlertSchedule{
				Immediate:      true,
				RepeatInterval: 60,
			},
		},
		{
			InstitutionID: institutionID,
			Name:          defaultRuleName(lang, RuleTypeAbsence),
			Type:          RuleTypeAbsence,
			Enabled:       true,
			Condition: entities.AlertCondition{
				Threshold:  0,
				Unit:       UnitDays,
				Comparison: ComparisonGreaterThan,
			},
			Notification: entities.AlertNotification{
				Internal:   true,
				Recipients: entities.StringList{RecipientSelf},
			},
			Schedule: entities.AlertSchedule{
				Immediate:      false,
				Delay:          120,
				RepeatInterval: 60,
			},
		},
		{
			InstitutionID: institutionID,
			Name:          defaultRuleName(lang, RuleTypeEarlyDeparture),
			Type:          RuleTypeEarlyDeparture,
			Enabled:       false,
			Condition: entities.AlertCondition{
				Threshold:  30,
				Unit:       UnitMinutes,
				Comparison: ComparisonGreaterThan,
			},
			Notification: entities.AlertNotification{
				Internal:   true,
				Recipients: entities.StringList{RecipientSelf},
			},
			Schedule: entities.AlertSchedule{
				Immediate:      true,
				RepeatInterval: 60,
			},
		},
	}
}
