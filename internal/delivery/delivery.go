// Package delivery holds the per-family job handlers: they turn a claimed
// job into documents and an email.
package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"eventhub/internal/jobs"
	"eventhub/internal/mail"
	"eventhub/internal/pdf"
)

const contentTypePDF = "application/pdf"

// Documents is the part of the PDF generator the handlers use.
type Documents interface {
	RenderTicket(reg jobs.RegistrationPayload, ev jobs.EventSnapshot) ([]byte, error)
	RenderCertificate(ctx context.Context, cp jobs.CertificatePayload, ev jobs.EventSnapshot) ([]byte, error)
}

var _ Documents = (*pdf.Generator)(nil)

// EmailHandler processes the email family.
type EmailHandler struct {
	Renderer  mail.Renderer
	Docs      Documents
	Transport mail.Transport
	Log       zerolog.Logger
}

func (h *EmailHandler) Handle(ctx context.Context, job *jobs.Job) error {
	// Documents first: a registration mail is never rendered without its ticket.
	var attachments []mail.Attachment
	if job.Kind == jobs.KindRegistration {
		var p jobs.RegistrationPayload
		if err := job.Decode(&p); err != nil {
			return &jobs.RenderError{Kind: job.Kind, Err: err}
		}
		ticket, err := h.Docs.RenderTicket(p, p.Event)
		if err != nil {
			return err
		}
		attachments = append(attachments, mail.Attachment{
			Filename:    fmt.Sprintf("ticket-%s.pdf", p.TokenID),
			Content:     ticket,
			ContentType: contentTypePDF,
		})
	}

	msg, err := h.Renderer.Render(job)
	if err != nil {
		return err
	}

	env := mail.Envelope{To: job.To, Subject: msg.Subject, HTML: msg.HTML, Attachments: attachments}

	if err := h.Transport.Send(ctx, env); err != nil {
		return err
	}
	h.Log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Int("attachments", len(env.Attachments)).Msg("email sent")
	return nil
}

// CertificateHandler processes the certificate family.
type CertificateHandler struct {
	Renderer  mail.Renderer
	Docs      Documents
	Transport mail.Transport
	Log       zerolog.Logger
}

func (h *CertificateHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var p jobs.CertificatePayload
	if err := job.Decode(&p); err != nil {
		return &jobs.GenerationError{Document: "certificate", Err: err}
	}

	doc, err := h.Docs.RenderCertificate(ctx, p, p.Event)
	if err != nil {
		return err
	}
	msg, err := h.Renderer.RenderCertificate(p)
	if err != nil {
		return err
	}

	to := job.To
	if to == "" {
		to = p.UserEmail
	}
	name := pdf.Slug(p.UserName)
	if name == "" {
		name = pdf.Slug(p.Event.Title)
	}
	err = h.Transport.Send(ctx, mail.Envelope{
		To:      to,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Attachments: []mail.Attachment{{
			Filename:    "certificate-" + name + ".pdf",
			Content:     doc,
			ContentType: contentTypePDF,
		}},
	})
	if err != nil {
		return err
	}
	h.Log.Debug().Str("job_id", job.ID).Str("event_ref", job.EventRef).Msg("certificate sent")
	return nil
}
