package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	env    envelope
	key    string
	host   string
	client *rest.Client
}

// NewSendGridSender creates a SendGridSender. A nil httpClient uses
// http.DefaultClient.
func NewSendGridSender(settings conf.EmailSettings, httpClient *http.Client) *SendGridSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	host := settings.SendGrid.BaseURL
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{
		env:    newEnvelope(settings),
		key:    settings.SendGrid.APIKey,
		host:   host,
		client: &rest.Client{HTTPClient: httpClient},
	}
}

func (s *SendGridSender) Name() string { return ProviderSendGrid }

func (s *SendGridSender) prepare(msg *EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.env.subject(msg.Subject)
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(s.env.from.Name, s.env.from.Address))
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg *EmailMessage) error {
	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := s.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message to %s: status %d: %s", msg.To.Address, res.StatusCode, res.Body)
	}
	return nil
}
