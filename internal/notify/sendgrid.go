// Package notify delivers run reports to staff by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer accepts a subject and a rendered HTML body.
type Mailer interface {
	Send(ctx context.Context, subject, htmlBody string) error
}

// sendClient is the part of the SendGrid client we use.
type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendError represents a rejected SendGrid request.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sendgrid error (%d): %s", e.StatusCode, e.Body)
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client sendClient
	from   *mail.Email
	to     []*mail.Email
}

// NewSendGrid creates a mailer for the given API key, sender and recipients.
func NewSendGrid(apiKey, from string, to []string) (*SendGrid, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	return newSendGrid(sendgrid.NewSendClient(apiKey), from, to)
}

func newSendGrid(client sendClient, from string, to []string) (*SendGrid, error) {
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("sender address is required")
	}

	recipients := make([]*mail.Email, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, mail.NewEmail("", addr))
		}
	}
	if len(recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}

	return &SendGrid{
		client: client,
		from:   mail.NewEmail("", strings.TrimSpace(from)),
		to:     recipients,
	}, nil
}

// Send delivers one message to every recipient. Click tracking is disabled so the
// admin links in the report stay readable.
func (s *SendGrid) Send(ctx context.Context, subject, htmlBody string) error {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(s.to...)
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/html", htmlBody))

	tracking := mail.NewTrackingSettings()
	tracking.SetClickTracking(mail.NewClickTrackingSetting().SetEnable(false).SetEnableText(false))
	m.SetTrackingSettings(tracking)

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &SendError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}
