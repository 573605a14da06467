package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/jobs"
	"eventhub/internal/mail"
	"eventhub/internal/pdf"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []mail.Envelope
	err  error
}

func (f *fakeTransport) Send(_ context.Context, env mail.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return f.err
}

func emailProcessor(t *testing.T, store jobs.Store, tr mail.Transport) *jobs.Processor {
	t.Helper()
	p, err := jobs.NewProcessor(jobs.ProcessorConfig{
		Family: jobs.FamilyEmail,
		Store:  store,
		Handler: &EmailHandler{
			Docs:      &pdf.Generator{},
			Transport: tr,
			Log:       zerolog.Nop(),
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func enqueueRegistration(t *testing.T, store jobs.Store) string {
	t.Helper()
	job, err := jobs.NewEmailJob(jobs.KindRegistration, "asha@example.com", jobs.RegistrationPayload{
		UserName:   "Asha",
		Event:      jobs.EventSnapshot{Title: "DevConf", DateTime: "2025-05-01T10:00:00Z", Venue: "Hall A"},
		TokenID:    "ABC123XYZ",
		TicketLink: "https://x/ticket/ABC123XYZ",
	})
	require.NoError(t, err)
	id, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)
	return id
}

func TestRegistrationEmailIsDeliveredWithTicket(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	tr := &fakeTransport{}
	id := enqueueRegistration(t, store)

	_, err := emailProcessor(t, store, tr).Cycle(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, jobs.FamilyEmail, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)

	require.Len(t, tr.sent, 1)
	env := tr.sent[0]
	assert.Equal(t, "asha@example.com", env.To)
	assert.Contains(t, env.Subject, "DevConf")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "application/pdf", env.Attachments[0].ContentType)
	assert.Equal(t, "ticket-ABC123XYZ.pdf", env.Attachments[0].Filename)
	assert.True(t, bytes.HasPrefix(env.Attachments[0].Content, []byte("%PDF-")))
}

func TestFailingTransportExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	tr := &fakeTransport{err: &jobs.TransportError{To: "asha@example.com", Err: errors.New("550 mailbox unavailable")}}
	id := enqueueRegistration(t, store)
	p := emailProcessor(t, store, tr)

	for i := 0; i < 3; i++ {
		_, err := p.Cycle(ctx)
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, jobs.FamilyEmail, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.NotEmpty(t, *got.LastError)
	// The ticket is rebuilt for every attempt.
	assert.Len(t, tr.sent, 3)
}

func TestNonRegistrationEmailHasNoAttachment(t *testing.T) {
	tr := &fakeTransport{}
	h := &EmailHandler{Docs: &pdf.Generator{}, Transport: tr}
	job, err := jobs.NewEmailJob(jobs.KindNewEvent, "asha@example.com", jobs.NewEventPayload{
		Event: jobs.EventSnapshot{Title: "DevConf"},
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), job))
	require.Len(t, tr.sent, 1)
	assert.Empty(t, tr.sent[0].Attachments)
}

func TestUnknownKindNeverSends(t *testing.T) {
	tr := &fakeTransport{}
	h := &EmailHandler{Docs: &pdf.Generator{}, Transport: tr}
	job, err := jobs.NewEmailJob(jobs.Kind("WEEKLY_DIGEST"), "asha@example.com", map[string]any{})
	require.NoError(t, err)

	err = h.Handle(context.Background(), job)
	var rerr *jobs.RenderError
	assert.True(t, errors.As(err, &rerr))
	assert.Empty(t, tr.sent)
}

func TestCertificateHandler(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	tr := &fakeTransport{}

	job, err := jobs.NewCertificateJob(
		jobs.CertificateRef{RegistrationRef: "reg-1", EventRef: "evt-1"},
		jobs.CertificatePayload{
			UserName:  "Asha Rao",
			UserEmail: "asha@example.com",
			Event:     jobs.EventSnapshot{ID: "evt-1", Title: "DevConf", DateTime: "2025-05-01T10:00:00Z"},
		},
	)
	require.NoError(t, err)
	id, err := store.Enqueue(ctx, job)
	require.NoError(t, err)

	p, err := jobs.NewProcessor(jobs.ProcessorConfig{
		Family: jobs.FamilyCertificate,
		Store:  store,
		Handler: &CertificateHandler{
			Docs: &pdf.Generator{
				Fonts:       pdf.StaticFont{Err: errors.New("offline")},
				Signatories: []pdf.Signatory{{Name: "Aarav Mehta", Title: "Community Lead", Slug: "aarav-mehta"}},
			},
			Transport: tr,
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	stats, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)

	got, err := store.Get(ctx, jobs.FamilyCertificate, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)

	require.Len(t, tr.sent, 1)
	env := tr.sent[0]
	assert.Equal(t, "asha@example.com", env.To)
	assert.Equal(t, "Your certificate for DevConf", env.Subject)
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "certificate-asha-rao.pdf", env.Attachments[0].Filename)
	assert.True(t, strings.HasPrefix(string(env.Attachments[0].Content), "%PDF-"))
}

func TestCertificateHandler_MissingTitleIsGenerationError(t *testing.T) {
	tr := &fakeTransport{}
	h := &CertificateHandler{Docs: &pdf.Generator{}, Transport: tr}
	job := &jobs.Job{
		Family:  jobs.FamilyCertificate,
		Kind:    jobs.KindCertificate,
		Payload: []byte(`{"userEmail":"asha@example.com","event":{}}`),
	}

	err := h.Handle(context.Background(), job)
	var gerr *jobs.GenerationError
	assert.True(t, errors.As(err, &gerr))
	assert.Empty(t, tr.sent)
}

type failingDocs struct {
	tickets int
}

func (d *failingDocs) RenderTicket(jobs.RegistrationPayload, jobs.EventSnapshot) ([]byte, error) {
	d.tickets++
	return nil, &jobs.GenerationError{Document: "ticket", Err: errors.New("disk full")}
}

func (d *failingDocs) RenderCertificate(context.Context, jobs.CertificatePayload, jobs.EventSnapshot) ([]byte, error) {
	return nil, errors.New("unused")
}

func TestRegistrationTicketFailureStopsBeforeSend(t *testing.T) {
	tr := &fakeTransport{}
	docs := &failingDocs{}
	h := &EmailHandler{Docs: docs, Transport: tr}
	job, err := jobs.NewEmailJob(jobs.KindRegistration, "asha@example.com", jobs.RegistrationPayload{
		UserName: "Asha",
		Event:    jobs.EventSnapshot{Title: "DevConf"},
		TokenID:  "ABC123XYZ",
	})
	require.NoError(t, err)

	err = h.Handle(context.Background(), job)
	var gerr *jobs.GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "ticket", gerr.Document)
	assert.Equal(t, 1, docs.tickets)
	assert.Empty(t, tr.sent)
}
