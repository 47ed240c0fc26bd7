package repository

import "github.com/edupresencia/fichai/internal/errors"

// Sentinel errors returned by the repositories.
var (
	ErrAlertRuleNotFound = errors.NewStd("alert rule not found")
	ErrEmployeeNotFound  = errors.NewStd("employee not found")
)
