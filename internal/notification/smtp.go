package notification

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// shoutrrrSender is the part of the shoutrrr router used here.
type shoutrrrSender interface {
	Send(message string, params *types.Params) []error
}

// SMTPSender sends email through an SMTP relay using a shoutrrr smtp:// URL.
type SMTPSender struct {
	env    envelope
	router shoutrrrSender
}

// NewSMTPSender builds the shoutrrr router for the configured relay.
func NewSMTPSender(settings conf.EmailSettings) (*SMTPSender, error) {
	if settings.SMTP.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	router, err := shoutrrr.CreateSender(SMTPURL(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp sender: %w", err)
	}
	return newSMTPSender(settings, router), nil
}

func newSMTPSender(settings conf.EmailSettings, router shoutrrrSender) *SMTPSender {
	return &SMTPSender{env: newEnvelope(settings), router: router}
}

// SMTPURL renders the shoutrrr service URL. The recipient in the URL is a
// placeholder; every Send overrides it.
func SMTPURL(settings conf.EmailSettings) string {
	s := settings.SMTP
	port := s.Port
	if port == 0 {
		port = 587
	}
	u := url.URL{
		Scheme: "smtp",
		Host:   s.Host + ":" + strconv.Itoa(port),
		Path:   "/",
	}
	if s.Username != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	}
	q := url.Values{}
	q.Set("fromaddress", settings.From)
	if settings.FromName != "" {
		q.Set("fromname", settings.FromName)
	}
	q.Set("toaddresses", settings.From)
	if s.Encryption != "" {
		q.Set("encryption", s.Encryption)
	}
	q.Set("usehtml", "no")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *SMTPSender) Name() string { return ProviderSMTP }

func (s *SMTPSender) Send(ctx context.Context, msg *EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := types.Params{
		"subject":     s.env.subject(msg.Subject),
		"toaddresses": msg.To.Address,
	}
	if errs := s.router.Send(msg.Text, &params); len(errs) > 0 {
		var joined []error
		for _, e := range errs {
			if e != nil {
				joined = append(joined, e)
			}
		}
		if len(joined) > 0 {
			return fmt.Errorf("smtp send to %s failed: %w", msg.To.Address, errors.Join(joined...))
		}
	}
	return nil
}
