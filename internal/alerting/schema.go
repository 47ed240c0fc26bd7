package alerting

import "github.com/edupresencia/fichai/internal/validation"

// Schema describes the closed vocabulary of alert rules for the admin UI.
type Schema struct {
	Types        []RuleTypeSchema   `json:"types"`
	Comparisons  []ComparisonSchema `json:"comparisons"`
	Units        []UnitSchema       `json:"units"`
	Placeholders []string           `json:"placeholders"`
	Templates    TemplateSchema     `json:"templates"`
}

// RuleTypeSchema describes a rule type and the units its condition accepts.
type RuleTypeSchema struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Units []string `json:"units"`
}

// ComparisonSchema describes a comparison for the UI.
type ComparisonSchema struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Symbol string `json:"symbol"`
}

// UnitSchema describes a condition unit and its size in minutes.
type UnitSchema struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Minutes float64 `json:"minutes"`
}

// TemplateSchema holds the default email texts in the requested language.
type TemplateSchema struct {
	Language string            `json:"language"`
	Subject  string            `json:"subject"`
	Bodies   map[string]string `json:"bodies"`
}

var ruleTypeLabels = map[string]map[string]string{
	"ca": {
		RuleTypeLateArrival:    "Retard",
		RuleTypeAbsence:        "Absència",
		RuleTypeEarlyDeparture: "Sortida anticipada",
		RuleTypeCustom:         "Personalitzada",
	},
	"es": {
		RuleTypeLateArrival:    "Retraso",
		RuleTypeAbsence:        "Ausencia",
		RuleTypeEarlyDeparture: "Salida anticipada",
		RuleTypeCustom:         "Personalizada",
	},
	"en": {
		RuleTypeLateArrival:    "Late arrival",
		RuleTypeAbsence:        "Absence",
		RuleTypeEarlyDeparture: "Early departure",
		RuleTypeCustom:         "Custom",
	},
}

var comparisonLabels = map[string]map[string]string{
	"ca": {ComparisonGreaterThan: "més gran que", ComparisonLessThan: "més petit que", ComparisonEquals: "igual a"},
	"es": {ComparisonGreaterThan: "mayor que", ComparisonLessThan: "menor que", ComparisonEquals: "igual a"},
	"en": {ComparisonGreaterThan: "greater than", ComparisonLessThan: "less than", ComparisonEquals: "equals"},
}

var unitLabels = map[string]map[string]string{
	"ca": {UnitMinutes: "minuts", UnitHours: "hores", UnitDays: "dies"},
	"es": {UnitMinutes: "minutos", UnitHours: "horas", UnitDays: "días"},
	"en": {UnitMinutes: "minutes", UnitHours: "hours", UnitDays: "days"},
}

// RuleTypes lists the rule types in display order.
func RuleTypes() []string {
	return []string{RuleTypeLateArrival, RuleTypeAbsence, RuleTypeEarlyDeparture, RuleTypeCustom}
}

// Comparisons lists the condition comparisons in display order.
func Comparisons() []string {
	return []string{ComparisonGreaterThan, ComparisonLessThan, ComparisonEquals}
}

var comparisonSymbols = map[string]string{
	ComparisonGreaterThan: ">",
	ComparisonLessThan:    "<",
	ComparisonEquals:      "=",
}

// GetSchema returns the alert rule schema with labels in the language
// matched from lang.
func GetSchema(lang string) Schema {
	l := MatchLanguage(lang)

	types := make([]RuleTypeSchema, 0, len(RuleTypes()))
	bodies := make(map[string]string, len(RuleTypes()))
	for _, t := range RuleTypes() {
		types = append(types, RuleTypeSchema{
			Name:  t,
			Label: ruleTypeLabels[l][t],
			Units: validation.AllowedUnits(t),
		})
		bodies[t] = DefaultBody(l, t)
	}

	comparisons := make([]ComparisonSchema, 0, len(Comparisons()))
	for _, c := range Comparisons() {
		comparisons = append(comparisons, ComparisonSchema{
			Name:   c,
			Label:  comparisonLabels[l][c],
			Symbol: comparisonSymbols[c],
		})
	}

	units := make([]UnitSchema, 0, 3)
	for _, u := range []string{UnitMinutes, UnitHours, UnitDays} {
		units = append(units, UnitSchema{Name: u, Label: unitLabels[l][u], Minutes: minutesPer[u]})
	}

	return Schema{
		Types:        types,
		Comparisons:  comparisons,
		Units:        units,
		Placeholders: Placeholders(),
		Templates: TemplateSchema{
			Language: l,
			Subject:  DefaultSubject(l),
			Bodies:   bodies,
		},
	}
}
