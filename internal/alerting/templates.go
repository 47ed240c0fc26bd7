package alerting

import (
	"golang.org/x/text/language"
)

// Supported template languages. Catalan is the fallback.
var supportedLanguages = []language.Tag{
	language.Catalan,
	language.Spanish,
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// MatchLanguage maps a configured or Accept-Language style string to one of
// the template languages ("ca", "es", "en").
func MatchLanguage(s ...string) string {
	tag, _ := language.MatchStrings(languageMatcher, s...)
	base, _ := tag.Base()
	switch base.String() {
	case "es":
		return "es"
	case "en":
		return "en"
	default:
		return "ca"
	}
}

type templateSet struct {
	subject string
	bodies  map[string]string
	names   map[string]string
}

var defaultTemplates = map[string]templateSet{
	"ca": {
		subject: "Alerta d'assistència: {ruleName}",
		bodies: map[string]string{
			RuleTypeLateArrival: "Benvolgut/da {employeeName},\n\n" +
				"Hem registrat la teva entrada el {date} a les {time} amb un retard de {delayMinutes} minuts.\n\n" +
				"Si hi ha hagut algun error, contacta amb la direcció del centre.",
			RuleTypeAbsence: "Benvolgut/da {employeeName},\n\n" +
				"No consta cap fitxatge teu el {date}.\n\n" +
				"Si us plau, justifica l'absència a la direcció del centre.",
			RuleTypeEarlyDeparture: "Benvolgut/da {employeeName},\n\n" +
				"Hem registrat la teva sortida el {date} a les {time}, {delayMinutes} minuts abans de l'hora prevista.",
			RuleTypeCustom: "Alerta {ruleName} per a {employeeName}: {measuredValue} {measuredUnit} (llindar {threshold} {unit}).",
		},
		names: map[string]string{
			RuleTypeLateArrival:    "Retard en l'entrada",
			RuleTypeAbsence:        "Absència sense fitxatge",
			RuleTypeEarlyDeparture: "Sortida anticipada",
		},
	},
	"es": {
		subject: "Alerta de asistencia: {ruleName}",
		bodies: map[string]string{
			RuleTypeLateArrival: "Estimado/a {employeeName},\n\n" +
				"Hemos registrado tu entrada el {date} a las {time} con un retraso de {delayMinutes} minutos.\n\n" +
				"Si se trata de un error, contacta con la dirección del centro.",
			RuleTypeAbsence: "Estimado/a {employeeName},\n\n" +
				"No consta ningún fichaje tuyo el {date}.\n\n" +
				"Por favor, justifica la ausencia ante la dirección del centro.",
			RuleTypeEarlyDeparture: "Estimado/a {employeeName},\n\n" +
				"Hemos registrado tu salida el {date} a las {time}, {delayMinutes} minutos antes de la hora prevista.",
			RuleTypeCustom: "Alerta {ruleName} para {employeeName}: {measuredValue} {measuredUnit} (umbral {threshold} {unit}).",
		},
		names: map[string]string{
			RuleTypeLateArrival:    "Retraso en la entrada",
			RuleTypeAbsence:        "Ausencia sin fichaje",
			RuleTypeEarlyDeparture: "Salida anticipada",
		},
	},
	"en": {
		subject: "Attendance alert: {ruleName}",
		bodies: map[string]string{
			RuleTypeLateArrival: "Dear {employeeName},\n\n" +
				"Your clock-in on {date} at {time} was {delayMinutes} minutes late.\n\n" +
				"If this is a mistake, please contact the school management.",
			RuleTypeAbsence: "Dear {employeeName},\n\n" +
				"There is no clock-in recorded for you on {date}.\n\n" +
				"Please justify the absence to the school management.",
			RuleTypeEarlyDeparture: "Dear {employeeName},\n\n" +
				"Your clock-out on {date} at {time} was {delayMinutes} minutes before the scheduled time.",
			RuleTypeCustom: "Alert {ruleName} for {employeeName}: {measuredValue} {measuredUnit} (threshold {threshold} {unit}).",
		},
		names: map[string]string{
			RuleTypeLateArrival:    "Late arrival",
			RuleTypeAbsence:        "Absence without clock-in",
			RuleTypeEarlyDeparture: "Early departure",
		},
	},
}

func templatesFor(lang string) templateSet {
	if t, ok := defaultTemplates[MatchLanguage(lang)]; ok {
		return t
	}
	return defaultTemplates["ca"]
}

// DefaultBody returns the built-in body template for a rule type.
func DefaultBody(lang, ruleType string) string {
	t := templatesFor(lang)
	if b, ok := t.bodies[ruleType]; ok {
		return b
	}
	return t.bodies[RuleTypeCustom]
}

// DefaultSubject returns the built-in subject template.
func DefaultSubject(lang string) string {
	return templatesFor(lang).subject
}

func defaultRuleName(lang, ruleType string) string {
	return templatesFor(lang).names[ruleType]
}
