package telemetry

import (
	"sync"
	"testing"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capture) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capture) captured() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

func TestNew_DisabledWithoutDSN(t *testing.T) {
	r, err := New(conf.TelemetrySettings{}, "dev", logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, r)

	// A nil reporter is safe to install and close.
	r.Install()
	r.Close()
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(conf.TelemetrySettings{SentryDSN: "not a dsn"}, "dev", logger.NewNop())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestReporter_DependencyErrorsOnly(t *testing.T) {
	c := &capture{}
	r, err := newReporter(sentry.ClientOptions{SampleRate: 1, BeforeSend: c.beforeSend}, logger.NewNop())
	require.NoError(t, err)
	r.Install()
	defer r.Close()

	_ = errors.Validation("bad input")
	_ = errors.NotFound("rule %s not found", "r1")
	_ = errors.New(errors.NewStd("connection refused")).
		Category(errors.CategoryDependency).
		Component("alert-rule-store").
		Context("rule_id", "r1").
		Build()

	events := c.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "alert-rule-store", events[0].Tags["component"])
	assert.Equal(t, "dependency", events[0].Tags["category"])
	assert.Equal(t, "r1", events[0].Contexts["error"]["rule_id"])
}

func TestReporter_CloseUninstalls(t *testing.T) {
	c := &capture{}
	r, err := newReporter(sentry.ClientOptions{SampleRate: 1, BeforeSend: c.beforeSend}, logger.NewNop())
	require.NoError(t, err)
	r.Install()
	r.Close()

	_ = errors.Dependency("smtp", errors.NewStd("timeout"))
	assert.Empty(t, c.captured())
}
