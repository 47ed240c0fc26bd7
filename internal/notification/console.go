package notification

import (
	"context"
	"slices"
	"sync"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/logger"
)

// ConsoleSender logs messages instead of sending them and keeps a copy of
// each one. It is the development default and the sender used in tests.
type ConsoleSender struct {
	env envelope
	log logger.Logger

	mu   sync.Mutex
	sent []EmailMessage
	// failFor makes Send fail for the listed addresses.
	failFor map[string]error
}

// NewConsoleSender creates a ConsoleSender.
func NewConsoleSender(settings conf.EmailSettings, log logger.Logger) *ConsoleSender {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConsoleSender{env: newEnvelope(settings), log: log.Module("email.console")}
}

func (s *ConsoleSender) Name() string { return ProviderConsole }

func (s *ConsoleSender) Send(ctx context.Context, msg *EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.failFor[msg.To.Address]
	if err == nil {
		m := *msg
		m.Subject = s.env.subject(msg.Subject)
		s.sent = append(s.sent, m)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info("email",
		logger.String("from", s.env.from.String()),
		logger.String("to", msg.To.String()),
		logger.String("subject", s.env.subject(msg.Subject)),
		logger.String("body", msg.Text))
	return nil
}

// Sent returns a copy of the delivered messages in send order.
func (s *ConsoleSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

// FailFor makes subsequent sends to address return err.
func (s *ConsoleSender) FailFor(address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor == nil {
		s.failFor = make(map[string]error)
	}
	s.failFor[address] = err
}
