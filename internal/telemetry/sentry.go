// Package telemetry reports dependency failures to Sentry.
package telemetry

import (
	"time"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Reporter forwards dependency-category errors to a Sentry hub.
type Reporter struct {
	hub *sentry.Hub
	log logger.Logger
}

// New creates a Reporter from settings. It returns nil when no DSN is
// configured, which disables reporting.
func New(settings conf.TelemetrySettings, release string, log logger.Logger) (*Reporter, error) {
	if settings.SentryDSN == "" {
		return nil, nil
	}
	return newReporter(sentry.ClientOptions{
		Dsn:         settings.SentryDSN,
		Environment: settings.Environment,
		Release:     release,
		SampleRate:  settings.SampleRate,
	}, log)
}

func newReporter(opts sentry.ClientOptions, log logger.Logger) (*Reporter, error) {
	if log == nil {
		log = logger.NewNop()
	}
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Component("telemetry").
			Field("telemetry.sentryDsn", err.Error()).
			Build()
	}
	return &Reporter{
		hub: sentry.NewHub(client, sentry.NewScope()),
		log: log.Module("telemetry"),
	}, nil
}

// Install makes r the process-wide dependency error reporter.
func (r *Reporter) Install() {
	if r == nil {
		return
	}
	errors.SetReporter(r.Report)
	r.log.Info("sentry error reporting enabled")
}

// Report sends err to Sentry tagged with its component and category.
func (r *Reporter) Report(err *errors.EnhancedError) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", err.Component())
		scope.SetTag("category", string(err.Category()))
		if ctx := err.Context(); len(ctx) > 0 {
			scope.SetContext("error", sentry.Context(ctx))
		}
		r.hub.CaptureException(err)
	})
}

// Close uninstalls the reporter and flushes queued events.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	errors.SetReporter(nil)
	if !r.hub.Flush(flushTimeout) {
		r.log.Warn("sentry flush timed out")
	}
}
