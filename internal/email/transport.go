package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport delivers outbox records over SMTP. It opens one connection
// per message, so it holds no state between batches.
type SMTPTransport struct {
	from   string
	dialer sender
}

func NewSMTPTransport(config SMTPConfig) (*SMTPTransport, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPTransport{
		from:   config.From,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}, nil
}

// Send gives up waiting when ctx is done. gomail cannot abort a dial in
// flight, so the goroutine finishes on its own.
func (t *SMTPTransport) Send(ctx context.Context, recipient, subject, bodyHTML, bodyText string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", bodyText)
	if bodyHTML != "" {
		m.AddAlternative("text/html", bodyHTML)
	}

	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
