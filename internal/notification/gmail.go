package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"

	"github.com/edupresencia/fichai/internal/conf"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends email with the Gmail API as the account that issued
// the refresh token.
type GmailSender struct {
	env     envelope
	service *gmail.Service
}

// NewGmailSender authenticates with the configured OAuth2 refresh token.
// Extra client options are appended, which lets tests point the client at a
// local server.
func NewGmailSender(ctx context.Context, settings conf.EmailSettings, opts ...option.ClientOption) (*GmailSender, error) {
	g := settings.Gmail
	cfg := &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	base := []option.ClientOption{
		option.WithTokenSource(cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: g.RefreshToken})),
	}
	if g.Endpoint != "" {
		base = append(base, option.WithEndpoint(g.Endpoint))
	}
	svc, err := gmail.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return &GmailSender{env: newEnvelope(settings), service: svc}, nil
}

func (s *GmailSender) Name() string { return ProviderGmail }

func (s *GmailSender) Send(ctx context.Context, msg *EmailMessage) error {
	raw, err := s.buildMIME(msg)
	if err != nil {
		return err
	}
	_, err = s.service.Users.Messages.
		Send("me", &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s failed: %w", msg.To.Address, err)
	}
	return nil
}

// buildMIME renders an RFC 5322 multipart/alternative message.
func (s *GmailSender) buildMIME(msg *EmailMessage) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		pw, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build email part: %w", err)
		}
		if _, err := pw.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("failed to build email part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build email: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", s.env.from.String())
	fmt.Fprintf(&out, "To: %s\r\n", msg.To.String())
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", s.env.subject(msg.Subject)))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", w.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
