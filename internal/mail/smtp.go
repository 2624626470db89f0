package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPMailer sends through a plain SMTP relay, optionally with STARTTLS
// and authentication.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
}

func (s *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	out, err := msg.build()
	if err != nil {
		return err
	}

	opts := []gomail.Option{gomail.WithPort(s.Port)}
	if s.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if s.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.User),
			gomail.WithPassword(s.Password),
		)
	}

	client, err := gomail.NewClient(s.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("failed to send mail via %s:%d: %w", s.Host, s.Port, err)
	}
	return nil
}
