// Package mail delivers rendered reports. Two transports exist, matching
// the deployment options of the report cron: direct SMTP and the Gmail
// REST API with OAuth credentials.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Message is a transport-independent email: HTML body, optional file
// attachments.
type Message struct {
	Subject     string
	From        string
	To          []string
	Cc          []string
	HTMLBody    string
	Attachments []string
}

// Mailer sends a single message. Delivery failure is the caller's signal
// to record the project outcome as failed.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

func (m *Message) build() (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := out.To(m.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(m.Cc) > 0 {
		if err := out.Cc(m.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc recipient: %w", err)
		}
	}
	out.Subject(m.Subject)
	out.SetBodyString(gomail.TypeTextHTML, m.HTMLBody)
	for _, path := range m.Attachments {
		out.AttachFile(path)
	}
	return out, nil
}
