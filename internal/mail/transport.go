package mail

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"eventhub/internal/jobs"
)

type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

type Envelope struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Transport delivers one email. A returned error means it was not sent.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends through a relay, one connection per message.
type SMTPTransport struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (t *SMTPTransport) Send(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return &jobs.TransportError{To: env.To, Err: err}
	}
	if env.To == "" {
		return &jobs.TransportError{To: env.To, Err: errors.New("empty recipient")}
	}
	if err := t.dialer.DialAndSend(t.message(env)); err != nil {
		return &jobs.TransportError{To: env.To, Err: err}
	}
	return nil
}

func (t *SMTPTransport) message(env Envelope) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", env.To)
	m.SetHeader("Subject", env.Subject)
	m.SetBody("text/html", env.HTML)

	for _, a := range env.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}

// LogTransport writes envelopes to the log instead of sending them. Used
// when no SMTP host is configured.
type LogTransport struct {
	Log zerolog.Logger
}

func (t LogTransport) Send(_ context.Context, env Envelope) error {
	names := make([]string, 0, len(env.Attachments))
	for _, a := range env.Attachments {
		names = append(names, a.Filename)
	}
	t.Log.Info().
		Str("to", env.To).
		Str("subject", env.Subject).
		Int("html_bytes", len(env.HTML)).
		Strs("attachments", names).
		Msg("mail not sent: smtp disabled")
	return nil
}
