// Package validation wraps go-playground/validator with English messages,
// JSON field names and the alert rule shape checks. Failures are returned
// as validation-category errors carrying per-field messages.
package validation

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"strings"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// custom validation tags
const (
	notBlankTag       = "notblank"
	repeatIntervalTag = "repeat_interval"
	unitForTypeTag    = "unit_for_type"
)

// Rule types.
const (
	RuleTypeLateArrival    = "late_arrival"
	RuleTypeAbsence        = "absence"
	RuleTypeEarlyDeparture = "early_departure"
	RuleTypeCustom         = "custom"
)

// Condition units.
const (
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
)

var unitsByType = map[string][]string{
	RuleTypeLateArrival:    {UnitMinutes, UnitHours},
	RuleTypeEarlyDeparture: {UnitMinutes, UnitHours},
	RuleTypeAbsence:        {UnitDays},
	RuleTypeCustom:         {UnitMinutes, UnitHours, UnitDays},
}

// AllowedUnits returns the condition units accepted for a rule type.
func AllowedUnits(ruleType string) []string {
	return append([]string(nil), unitsByType[ruleType]...)
}

// Validator validates structs and single values.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New returns a Validator with translations and custom rules registered.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	validate.RegisterStructValidation(alertRuleStructLevel, entities.AlertRule{})

	registerTranslation(validate, translator, notBlankTag, "{0} cannot be blank", false)
	registerTranslation(validate, translator, "required", "{0} is required", true)
	registerTranslation(validate, translator, repeatIntervalTag, "{0} must be at least 1 when repeat is enabled", false)
	registerTranslation(validate, translator, unitForTypeTag, "{0} is not allowed for this rule type", false)

	return &Validator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s. The returned error has category validation.
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return v.convert(err)
	}
	return nil
}

// Validate lets a Validator serve as an echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.Struct(i)
}

// Var validates a single value against tag, reporting it under field.
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg := strings.TrimSpace(field + " " + strings.TrimPrefix(verrs[0].Translate(v.translator), " "))
			return errors.Validation("invalid "+field, errors.FieldError{Field: field, Message: msg})
		}
		return errors.Validation(err.Error())
	}
	return nil
}

// IsEmail reports whether addr is a syntactically valid email address.
func (v *Validator) IsEmail(addr string) bool {
	return v.validate.Var(addr, "required,email") == nil
}

func (v *Validator) convert(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Validation(err.Error())
	}
	fields := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errors.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fe.Translate(v.translator),
		})
	}
	return errors.Validation("validation failed: "+errors.FormatFields(fields), fields...)
}

// fieldPath drops the root struct name: "AlertRule.condition.unit" -> "condition.unit".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// alertRuleStructLevel checks the cross-field constraints of a rule.
func alertRuleStructLevel(sl validator.StructLevel) {
	rule, ok := sl.Current().Interface().(entities.AlertRule)
	if !ok {
		return
	}
	if rule.Schedule.Repeat && rule.Schedule.RepeatInterval < 1 {
		sl.ReportError(rule.Schedule.RepeatInterval, "schedule.repeatInterval", "RepeatInterval", repeatIntervalTag, "")
	}
	if allowed, known := unitsByType[rule.Type]; known && rule.Condition.Unit != "" {
		found := false
		for _, u := range allowed {
			if u == rule.Condition.Unit {
				found = true
				break
			}
		}
		if !found {
			sl.ReportError(rule.Condition.Unit, "condition.unit", "Unit", unitForTypeTag, rule.Type)
		}
	}
}

// DecodeJSON decodes a single JSON value from r into dst, rejecting unknown
// fields and trailing data.
func DecodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.Validation("request body is empty")
		}
		return errors.Validation("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return errors.Validation("invalid JSON body: unexpected trailing data")
	}
	return nil
}

// DecodeJSONBytes is DecodeJSON over a byte slice.
func DecodeJSONBytes(b []byte, dst any) error {
	return DecodeJSON(bytes.NewReader(b), dst)
}
