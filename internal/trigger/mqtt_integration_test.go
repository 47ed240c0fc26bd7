//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package trigger_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/testutil/containers"
	"github.com/edupresencia/fichai/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var broker *containers.MosquittoContainer

func TestMain(m *testing.M) {
	ctx := context.Background() //nolint:gocritic // TestMain has no *testing.T for t.Context()

	var err error
	broker, err = containers.NewMosquittoContainer(ctx)
	if err != nil {
		panic("failed to create MQTT broker: " + err.Error())
	}

	code := m.Run()

	_ = broker.Terminate(context.Background()) //nolint:gocritic // TestMain has no *testing.T for t.Context()
	os.Exit(code)
}

type collectingSink struct {
	mu     sync.Mutex
	events []*alerting.TriggerEvent
}

func (c *collectingSink) Publish(e *alerting.TriggerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return true
}

func (c *collectingSink) snapshot() []*alerting.TriggerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*alerting.TriggerEvent(nil), c.events...)
}

func TestMQTTIntegration_AttendanceEventsReachSink(t *testing.T) {
	sink := &collectingSink{}
	sub := trigger.NewSubscriber(conf.MQTTSettings{
		Broker:   broker.BrokerURL(),
		ClientID: "fichai-test-" + t.Name(),
		Topic:    "fichai/+/attendance",
		QoS:      1,
	}, nil, sink, nil, logger.NewNop())

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()
	require.NoError(t, sub.Start(ctx))
	t.Cleanup(sub.Stop)

	publisher := broker.Client(t, "attendance-publisher")

	// The subscription is made in the connect handler, so retry until it
	// is active.
	payload := `{"employeeId":"emp-1","type":"late_arrival","value":25,"unit":"minutes"}`
	require.Eventually(t, func() bool {
		token := publisher.Publish("fichai/inst-1/attendance", 1, false, payload)
		token.WaitTimeout(time.Second)
		return len(sink.snapshot()) > 0
	}, 10*time.Second, 200*time.Millisecond)

	token := publisher.Publish("fichai/inst-1/attendance", 1, false, `not json`)
	require.True(t, token.WaitTimeout(5*time.Second))

	events := sink.snapshot()
	assert.Equal(t, "inst-1", events[0].InstitutionID)
	assert.Equal(t, "emp-1", events[0].EmployeeID)
	assert.InDelta(t, 25.0, events[0].MeasuredValue, 1e-9)
}

func TestMQTTIntegration_ConnectCancelled(t *testing.T) {
	sub := trigger.NewSubscriber(conf.MQTTSettings{
		Broker:   broker.BrokerURL(),
		ClientID: "fichai-cancelled",
		Topic:    "fichai/+/attendance",
	}, nil, &collectingSink{}, nil, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.Error(t, sub.Start(ctx))
	sub.Stop()
}
