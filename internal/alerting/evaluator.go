package alerting

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
)

// equalsTolerance absorbs float noise from unit conversion.
const equalsTolerance = 1e-9

// ErrUnknownUnit is returned when a value is expressed in an unsupported unit.
var ErrUnknownUnit = errors.NewStd("unknown unit")

// minutesPer holds the length of each unit in minutes.
var minutesPer = map[string]float64{
	UnitMinutes: 1,
	UnitHours:   60,
	UnitDays:    24 * 60,
}

// Evaluate compares a measured value against a threshold. greater_than and
// less_than are strict; an unknown comparison never matches.
func Evaluate(threshold float64, comparison string, measured float64) bool {
	switch comparison {
	case ComparisonGreaterThan:
		return measured > threshold
	case ComparisonLessThan:
		return measured < threshold
	case ComparisonEquals:
		return math.Abs(measured-threshold) <= equalsTolerance
	default:
		return false
	}
}

// ConvertUnit converts value from one unit to another.
func ConvertUnit(value float64, from, to string) (float64, error) {
	fromMin, ok := minutesPer[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	toMin, ok := minutesPer[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if from == to {
		return value, nil
	}
	return value * fromMin / toMin, nil
}

// EvaluateCondition converts measured from unit into the condition's unit
// and evaluates it.
func EvaluateCondition(cond entities.AlertCondition, measured float64, unit string) (bool, error) {
	v, err := ConvertUnit(measured, unit, cond.Unit)
	if err != nil {
		return false, err
	}
	return Evaluate(cond.Threshold, cond.Comparison, v), nil
}

// ToMinutes converts a measurement to minutes, used for the {delayMinutes}
// placeholder.
func ToMinutes(value float64, unit string) (float64, error) {
	return ConvertUnit(value, unit, UnitMinutes)
}

// ParseMeasurement coerces a loosely typed measured value, as found in MQTT
// payloads and MCP arguments, into a float64.
func ParseMeasurement(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
