package trigger

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
)

const (
	componentMQTT     = "mqtt-trigger"
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Source names reported to the Observer.
const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

// Statuses reported to the Observer.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusDropped  = "dropped"
)

// Publisher receives parsed events, typically an *alerting.AlertEventBus.
type Publisher interface {
	Publish(event *alerting.TriggerEvent) bool
}

// Observer is told about every inbound message.
type Observer func(source, status string)

// Subscriber consumes attendance events from an MQTT broker.
type Subscriber struct {
	settings conf.MQTTSettings
	parser   *Parser
	sink     Publisher
	observe  Observer
	log      logger.Logger
	client   paho.Client
}

// NewSubscriber creates a Subscriber. observe may be nil.
func NewSubscriber(settings conf.MQTTSettings, parser *Parser, sink Publisher, observe Observer, log logger.Logger) *Subscriber {
	if parser == nil {
		parser = NewParser(nil)
	}
	if observe == nil {
		observe = func(string, string) {}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Subscriber{
		settings: settings,
		parser:   parser,
		sink:     sink,
		observe:  observe,
		log:      log.Module("trigger.mqtt"),
	}
}

// Start connects to the broker and subscribes to the attendance topic. The
// subscription is renewed on every reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.settings.Broker)
	opts.SetClientID(s.settings.ClientID)
	if s.settings.Username != "" {
		opts.SetUsername(s.settings.Username)
		opts.SetPassword(s.settings.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.log.Warn("mqtt connection lost", logger.Error(err))
	})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Category(errors.CategoryDependency).
			Component(componentMQTT).
			Context("broker", s.settings.Broker).
			Build()
	}
	return nil
}

func (s *Subscriber) onConnect(c paho.Client) {
	token := c.Subscribe(s.settings.Topic, s.settings.QoS, func(_ paho.Client, msg paho.Message) {
		_ = s.HandleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		s.log.Error("mqtt subscribe failed",
			logger.String("topic", s.settings.Topic),
			logger.Error(token.Error()))
		return
	}
	s.log.Info("subscribed to attendance topic",
		logger.String("broker", s.settings.Broker),
		logger.String("topic", s.settings.Topic))
}

// HandleMessage parses one payload and publishes the event.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	event, err := s.parser.Parse(topic, payload)
	if err != nil {
		s.observe(SourceMQTT, StatusRejected)
		s.log.Warn("rejected attendance message",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}
	if !s.sink.Publish(event) {
		s.observe(SourceMQTT, StatusDropped)
		return errors.Newf("event queue full, dropped %s", event).
			Component(componentMQTT).
			Build()
	}
	s.observe(SourceMQTT, StatusAccepted)
	s.log.Debug("attendance event accepted", logger.String("event", event.String()))
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesce)
	}
}
