package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/jobs"
)

func registrationJob(t *testing.T) *jobs.Job {
	t.Helper()
	job, err := jobs.NewEmailJob(jobs.KindRegistration, "asha@example.com", jobs.RegistrationPayload{
		UserName:   "Asha",
		Event:      jobs.EventSnapshot{Title: "DevConf", DateTime: "2025-05-01T10:00:00Z", Venue: "Hall A"},
		TokenID:    "ABC123XYZ",
		TicketLink: "https://x/ticket/ABC123XYZ",
	})
	require.NoError(t, err)
	return job
}

func TestRender_Registration(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	msg, err := Render(registrationJob(t), loc)
	require.NoError(t, err)

	assert.Contains(t, msg.Subject, "DevConf")
	assert.Contains(t, msg.HTML, "Hi Asha")
	assert.Contains(t, msg.HTML, "Thursday, 01 May 2025 at 03:30 PM IST")
	assert.Contains(t, msg.HTML, "Hall A")
	assert.Contains(t, msg.HTML, "ABC123XYZ")
	assert.Contains(t, msg.HTML, `href="https://x/ticket/ABC123XYZ"`)
	assert.Contains(t, msg.HTML, "View ticket")
}

func TestRender_EventKinds(t *testing.T) {
	ev := jobs.EventSnapshot{Title: "GopherCon <India>", Description: "Two days of Go", Link: "https://events.example.com/gc"}

	newEvent, err := jobs.NewEmailJob(jobs.KindNewEvent, "asha@example.com", jobs.NewEventPayload{Event: ev})
	require.NoError(t, err)
	msg, err := Render(newEvent, nil)
	require.NoError(t, err)
	assert.Equal(t, "New event: GopherCon <India>", msg.Subject)
	assert.Contains(t, msg.HTML, "GopherCon &lt;India&gt;")
	assert.Contains(t, msg.HTML, "Date TBA")
	assert.Contains(t, msg.HTML, "https://events.example.com/gc")
	assert.Contains(t, msg.HTML, "Hi there")

	alert, err := jobs.NewEmailJob(jobs.KindExternalEventAlert, "asha@example.com", jobs.ExternalEventAlertPayload{
		UserName:     "Asha",
		Event:        ev,
		ExternalLink: "https://partner.example.com/e/1",
	})
	require.NoError(t, err)
	msg, err = Render(alert, nil)
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "GopherCon")
	assert.Contains(t, msg.HTML, "https://partner.example.com/e/1")
}

func TestRender_ExplicitContentWins(t *testing.T) {
	job, err := jobs.NewEmailJob(jobs.Kind("WEEKLY_DIGEST"), "asha@example.com", map[string]any{})
	require.NoError(t, err)
	job.Subject = "This week"
	job.HTML = "<p>digest</p>"

	msg, err := Render(job, nil)
	require.NoError(t, err)
	assert.Equal(t, Message{Subject: "This week", HTML: "<p>digest</p>"}, msg)
}

func TestRender_UnknownKindFails(t *testing.T) {
	job, err := jobs.NewEmailJob(jobs.Kind("WEEKLY_DIGEST"), "asha@example.com", map[string]any{})
	require.NoError(t, err)

	_, err = Render(job, nil)
	var rerr *jobs.RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, jobs.Kind("WEEKLY_DIGEST"), rerr.Kind)
}

func TestRender_UndecodablePayloadFails(t *testing.T) {
	job := registrationJob(t)
	job.Payload = []byte(`{"event": 42}`)

	_, err := Render(job, nil)
	var rerr *jobs.RenderError
	assert.True(t, errors.As(err, &rerr))
}

func TestRenderCertificateAndReminder(t *testing.T) {
	r := Renderer{}
	ev := jobs.EventSnapshot{Title: "DevConf", DateTime: "2025-05-01T10:00:00Z", Venue: "Hall A"}

	msg, err := r.RenderCertificate(jobs.CertificatePayload{UserName: "Asha", UserEmail: "asha@example.com", Event: ev})
	require.NoError(t, err)
	assert.Equal(t, "Your certificate for DevConf", msg.Subject)
	assert.Contains(t, msg.HTML, "attached")

	msg, err = r.RenderReminder(Reminder{UserName: "Asha", Event: ev, TokenID: "ABC123XYZ"})
	require.NoError(t, err)
	assert.Equal(t, "Reminder: DevConf is tomorrow", msg.Subject)
	assert.Contains(t, msg.HTML, "ABC123XYZ")
	assert.Contains(t, msg.HTML, "01 May 2025")

	_, err = r.RenderReminder(Reminder{UserName: "Asha"})
	assert.Error(t, err)
}

func TestSMTPTransport_BuildsAttachment(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "localhost", Port: 25, From: "events@example.com"})
	m := tr.message(Envelope{
		To:      "asha@example.com",
		Subject: "Your ticket for DevConf",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{Filename: "ticket-ABC123XYZ.pdf", Content: []byte("%PDF-1.3"), ContentType: "application/pdf"},
		},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "To: asha@example.com")
	assert.Contains(t, raw, "application/pdf")
	assert.Contains(t, raw, "ticket-ABC123XYZ.pdf")
}

func TestSMTPTransport_FailureIsTransportError(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "events@example.com"})

	err := tr.Send(context.Background(), Envelope{To: "asha@example.com", Subject: "s", HTML: "h"})
	var terr *jobs.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "asha@example.com", terr.To)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Send(ctx, Envelope{To: "asha@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := LogTransport{Log: zerolog.New(&buf)}
	require.NoError(t, tr.Send(context.Background(), Envelope{
		To:          "asha@example.com",
		Subject:     "Hello",
		Attachments: []Attachment{{Filename: "a.pdf"}},
	}))
	assert.Contains(t, buf.String(), `"to":"asha@example.com"`)
	assert.Contains(t, buf.String(), "a.pdf")
}
