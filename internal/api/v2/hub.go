package api

import (
	"sync"

	"github.com/edupresencia/fichai/internal/alerting"
)

const hubBufferSize = 64

// OutcomeHub fans engine outcomes out to connected alert streams.
type OutcomeHub struct {
	mu          sync.RWMutex
	subscribers map[string]chan alerting.NotificationOutcome
	bufferSize  int
}

// NewOutcomeHub creates a hub whose subscribers buffer bufferSize outcomes.
func NewOutcomeHub(bufferSize int) *OutcomeHub {
	if bufferSize < 1 {
		bufferSize = hubBufferSize
	}
	return &OutcomeHub{
		subscribers: make(map[string]chan alerting.NotificationOutcome),
		bufferSize:  bufferSize,
	}
}

// Publish sends o to every subscriber without blocking. Slow subscribers
// miss outcomes.
func (h *OutcomeHub) Publish(o alerting.NotificationOutcome) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- o:
		default:
		}
	}
}

// Subscribe registers id and returns its channel. Call Unsubscribe when done.
func (h *OutcomeHub) Subscribe(id string) <-chan alerting.NotificationOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan alerting.NotificationOutcome, h.bufferSize)
	h.subscribers[id] = ch
	return ch
}

// Unsubscribe removes id and closes its channel.
func (h *OutcomeHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// SubscriberCount returns the number of connected streams.
func (h *OutcomeHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
