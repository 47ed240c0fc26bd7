// Package errors extends the standard library errors package with the error
// categories used at the HTTP boundary and a small builder for attaching
// component and context information.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Category classifies an error for status mapping and reporting.
type Category string

const (
	CategoryGeneric       Category = "generic"
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryNotFound      Category = "not_found"
	CategoryDependency    Category = "dependency"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// EnhancedError wraps an error with its category and diagnostic context.
type EnhancedError struct {
	Err       error
	category  Category
	component string
	context   map[string]any
	fields    []FieldError
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return string(e.category)
	}
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// Category returns the error category.
func (e *EnhancedError) Category() Category { return e.category }

// Component returns the component that raised the error.
func (e *EnhancedError) Component() string { return e.component }

// Context returns a copy of the diagnostic key/value pairs.
func (e *EnhancedError) Context() map[string]any { return maps.Clone(e.context) }

// Fields returns the per-field validation messages, if any.
func (e *EnhancedError) Fields() []FieldError { return e.fields }

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err *EnhancedError
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: &EnhancedError{Err: err, category: CategoryGeneric}}
}

// Newf starts building an enhanced error from a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (b *ErrorBuilder) Category(c Category) *ErrorBuilder {
	b.err.category = c
	return b
}

func (b *ErrorBuilder) Component(name string) *ErrorBuilder {
	b.err.component = name
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.err.context == nil {
		b.err.context = make(map[string]any)
	}
	b.err.context[key] = value
	return b
}

func (b *ErrorBuilder) Field(field, message string) *ErrorBuilder {
	b.err.fields = append(b.err.fields, FieldError{Field: field, Message: message})
	return b
}

// Build finalises the error. Dependency errors are forwarded to the
// registered reporter.
func (b *ErrorBuilder) Build() error {
	if b.err.category == CategoryDependency {
		report(b.err)
	}
	return b.err
}

// Reporter receives dependency failures, typically for an external error tracker.
type Reporter func(err *EnhancedError)

var (
	reporterMu sync.RWMutex
	reporter   Reporter
)

// SetReporter installs the dependency error reporter. Pass nil to disable.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
}

func report(err *EnhancedError) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil {
		r(err)
	}
}

// Validation returns a validation error with optional field details.
func Validation(message string, fields ...FieldError) error {
	b := New(stderrors.New(message)).Category(CategoryValidation)
	b.err.fields = append(b.err.fields, fields...)
	return b.Build()
}

// NotFound returns a not-found error.
func NotFound(format string, args ...any) error {
	return Newf(format, args...).Category(CategoryNotFound).Build()
}

// Forbidden returns an authorization error.
func Forbidden(format string, args ...any) error {
	return Newf(format, args...).Category(CategoryAuthorization).Build()
}

// Dependency wraps a failure of a database, transport or other collaborator.
func Dependency(component string, err error) error {
	if err == nil {
		return nil
	}
	return New(err).Category(CategoryDependency).Component(component).Build()
}

// CategoryOf returns the category of the outermost enhanced error in err's
// chain, or CategoryGeneric.
func CategoryOf(err error) Category {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.category
	}
	return CategoryGeneric
}

// FieldsOf collects validation field errors from every enhanced error in
// err's tree, including joined errors.
func FieldsOf(err error) []FieldError {
	var out []FieldError
	walk(err, func(e error) {
		if ee, ok := e.(*EnhancedError); ok {
			out = append(out, ee.fields...)
		}
	})
	return out
}

// IsCategory reports whether any error in err's tree has category c.
func IsCategory(err error, c Category) bool {
	found := false
	walk(err, func(e error) {
		if ee, ok := e.(*EnhancedError); ok && ee.category == c {
			found = true
		}
	})
	return found
}

func walk(err error, fn func(error)) {
	if err == nil {
		return
	}
	fn(err)
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walk(e, fn)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), fn)
	}
}

// FormatFields renders field errors as "field: message; ...".
func FormatFields(fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// Standard library passthroughs.

func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }
func Unwrap(err error) error        { return stderrors.Unwrap(err) }
func NewStd(text string) error      { return stderrors.New(text) }
