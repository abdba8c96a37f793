package notification

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/openpour/openpour/internal/config"
)

// Transport delivers a rendered notification to a recipient
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPTransport sends mail through an authenticated SMTP relay
type SMTPTransport struct {
	client *mail.Client
	from   string
}

// NewSMTPTransport creates a transport from the SMTP configuration
func NewSMTPTransport(cfg config.SMTPConfig) (*SMTPTransport, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPTransport{
		client: client,
		from:   cfg.From,
	}, nil
}

// Send delivers one HTML mail
func (t *SMTPTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(t.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := t.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
