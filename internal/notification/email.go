// Package notification delivers alert emails through a configurable transport.
//
// The transport is chosen once from conf.EmailSettings and handed to the
// alert dispatcher; there is no package level state.
package notification

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/k3a/html2text"
)

// Provider names accepted in conf.EmailSettings.Provider.
const (
	ProviderConsole  = "console"
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderGmail    = "gmail"
)

// ErrEmailDisabled is returned by the sender used when email is switched off.
var ErrEmailDisabled = errors.NewStd("email delivery is disabled")

// EmailMessage is a single-recipient email with text and HTML bodies.
type EmailMessage struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// NewEmailMessage builds a message from a rendered template body. A body
// without markup is escaped and wrapped in paragraphs for the HTML part; the
// text part is always derived from the HTML.
func NewEmailMessage(toName, toAddress, subject, body string) *EmailMessage {
	htmlBody := body
	if !looksLikeHTML(body) {
		htmlBody = plainToHTML(body)
	}
	return &EmailMessage{
		To:      mail.Address{Name: toName, Address: toAddress},
		Subject: subject,
		Text:    html2text.HTML2TextWithOptions(htmlBody, html2text.WithUnixLineBreaks()),
		HTML:    htmlBody,
	}
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

func plainToHTML(s string) string {
	paragraphs := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	if b.Len() == 0 {
		return "<p></p>"
	}
	return b.String()
}

// EmailSender delivers one message. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	Send(ctx context.Context, msg *EmailMessage) error
	Name() string
}

// envelope holds the sender identity shared by all transports.
type envelope struct {
	from          mail.Address
	subjectPrefix string
}

func newEnvelope(settings conf.EmailSettings) envelope {
	return envelope{
		from:          mail.Address{Name: settings.FromName, Address: settings.From},
		subjectPrefix: settings.SubjectPrefix,
	}
}

func (e envelope) subject(s string) string {
	return e.subjectPrefix + s
}

// NewEmailSender returns the transport selected by settings.
func NewEmailSender(ctx context.Context, settings conf.EmailSettings, log logger.Logger) (EmailSender, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if !settings.Enabled {
		return disabledSender{}, nil
	}
	switch settings.Provider {
	case ProviderConsole, "":
		return NewConsoleSender(settings, log), nil
	case ProviderSMTP:
		return NewSMTPSender(settings)
	case ProviderSendGrid:
		return NewSendGridSender(settings, nil), nil
	case ProviderGmail:
		return NewGmailSender(ctx, settings)
	default:
		return nil, fmt.Errorf("unknown email provider %q", settings.Provider)
	}
}

type disabledSender struct{}

func (disabledSender) Send(context.Context, *EmailMessage) error { return ErrEmailDisabled }
func (disabledSender) Name() string                              { return "disabled" }
