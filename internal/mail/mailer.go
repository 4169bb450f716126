// Package mail sends transactional email for the chat server. Delivery is
// behind the Mailer interface so the reset flow can run without an SMTP
// relay in development.
package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// Mailer delivers a plain-text email to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer creates a mailer for the given relay. Auth options are only
// applied when a username is configured.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}
	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &SMTPMailer{client: client, from: from}, nil
}

// Send delivers one message and blocks until the relay accepts it.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer is the development fallback when no SMTP relay is configured.
// It logs that a send would have happened; the body is withheld so codes
// never reach the logs.
type LogMailer struct{}

// Send logs the masked recipient and subject in place of real delivery.
func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail (not sent, no SMTP configured): to=%s subject=%q", MaskEmail(to), subject)
	return nil
}

// MaskEmail hides most of an address for logging (e.g. a***@x.com).
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "****"
	}
	return email[:1] + "***" + email[at:]
}
