package alerting

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edupresencia/fichai/internal/logger"
)

// TriggerEvent is an attendance incident reported for one employee, e.g. a
// clock-in 20 minutes after the scheduled start. A Resolved event closes
// the incident and cancels pending repeats.
type TriggerEvent struct {
	EmployeeID    string    `json:"employeeId" validate:"required,max=64"`
	EmployeeName  string    `json:"employeeName,omitempty" validate:"max=255"`
	InstitutionID string    `json:"institutionId" validate:"required,max=64"`
	Type          string    `json:"type" validate:"oneof=late_arrival absence early_departure custom"`
	MeasuredValue float64   `json:"measuredValue" validate:"gte=0"`
	MeasuredUnit  string    `json:"measuredUnit" validate:"omitempty,oneof=minutes hours days"`
	OccurredAt    time.Time `json:"occurredAt"`
	Resolved      bool      `json:"resolved,omitempty"`
}

// dayKey identifies the calendar day of the incident.
func (e *TriggerEvent) dayKey() string {
	return e.OccurredAt.Format(time.DateOnly)
}

func (e *TriggerEvent) String() string {
	return fmt.Sprintf("%s/%s %s=%g%s", e.InstitutionID, e.EmployeeID, e.Type, e.MeasuredValue, e.MeasuredUnit)
}

// AlertEventHandler processes trigger events.
type AlertEventHandler func(event *TriggerEvent)

// DefaultEventBufferSize is the capacity used when none is configured.
const DefaultEventBufferSize = 1000

// AlertEventBus is an async pub/sub for trigger events. Publish is
// non-blocking: events go to a buffered channel drained by one worker, so
// MQTT callbacks and HTTP handlers never wait on rule evaluation or email.
type AlertEventBus struct {
	handlers []AlertEventHandler
	mu       sync.RWMutex
	eventCh  chan *TriggerEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	log      logger.Logger
}

// NewAlertEventBus creates a bus with the given buffer size and starts its
// worker.
func NewAlertEventBus(bufferSize int, log logger.Logger) *AlertEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	b := &AlertEventBus{
		handlers: make([]AlertEventHandler, 0),
		eventCh:  make(chan *TriggerEvent, bufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log.Module("alerting.bus"),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for trigger events.
func (b *AlertEventBus) Subscribe(handler AlertEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event and reports whether it was accepted. Events are
// dropped when the buffer is full or the bus is stopped.
func (b *AlertEventBus) Publish(event *TriggerEvent) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	select {
	case b.eventCh <- event:
		return true
	default:
		b.dropped.Add(1)
		b.log.Warn("alert event dropped, buffer full", logger.String("event", event.String()))
		return false
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (b *AlertEventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Pending returns the number of queued events.
func (b *AlertEventBus) Pending() int {
	return len(b.eventCh)
}

// Stop drains queued events, then shuts the worker down. Safe to call
// multiple times.
func (b *AlertEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

func (b *AlertEventBus) processLoop() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *AlertEventBus) dispatch(event *TriggerEvent) {
	b.mu.RLock()
	handlers := make([]AlertEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall keeps a panicking handler from killing the worker.
func (b *AlertEventBus) safeCall(handler AlertEventHandler, event *TriggerEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("alert event handler panicked",
				logger.Any("panic", r),
				logger.String("event", event.String()))
		}
	}()
	handler(event)
}
