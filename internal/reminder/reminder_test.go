package reminder

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/jobs"
	"eventhub/internal/mail"
)

type stubSource struct {
	from, to   time.Time
	recipients []Recipient
	err        error
}

func (s *stubSource) EventsStartingBetween(_ context.Context, from, to time.Time) ([]Recipient, error) {
	s.from, s.to = from, to
	return s.recipients, s.err
}

type flakyTransport struct {
	failFor string
	sent    []string
}

func (f *flakyTransport) Send(_ context.Context, env mail.Envelope) error {
	if env.To == f.failFor {
		return &jobs.TransportError{To: env.To, Err: errors.New("mailbox full")}
	}
	f.sent = append(f.sent, env.To)
	return nil
}

func TestWindowIsNextLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on 30 April is already 1 May in India.
	from, to := Window(time.Date(2025, 4, 30, 20, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2025, 5, 3, 0, 0, 0, 0, loc), to)
}

func TestSendReminders_SkipsFailedRecipients(t *testing.T) {
	ev := jobs.EventSnapshot{Title: "DevConf", DateTime: "2025-05-02T04:30:00Z", Venue: "Hall A"}
	src := &stubSource{recipients: []Recipient{
		{Email: "one@example.com", Name: "One", TokenID: "T1", Event: ev},
		{Email: "broken@example.com", Name: "Broken", TokenID: "T2", Event: ev},
		{Email: "", Name: "Nobody", Event: ev},
		{Email: "three@example.com", Name: "Three", TokenID: "T3", Event: ev},
	}}
	tr := &flakyTransport{failFor: "broken@example.com"}
	s := &Service{Source: src, Transport: tr, Log: zerolog.Nop()}

	res, err := s.SendReminders(context.Background(), time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2, Skipped: 2}, res)
	assert.Equal(t, []string{"one@example.com", "three@example.com"}, tr.sent)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), src.from)
}

func TestSendReminders_SourceError(t *testing.T) {
	s := &Service{Source: &stubSource{err: errors.New("db down")}, Transport: &flakyTransport{}, Log: zerolog.Nop()}
	_, err := s.SendReminders(context.Background(), time.Now())
	assert.ErrorContains(t, err, "db down")
}

func TestServe_RejectsBadSchedule(t *testing.T) {
	s := &Service{Schedule: "every day", Source: &stubSource{}, Transport: &flakyTransport{}, Log: zerolog.Nop()}
	assert.Error(t, s.Serve(context.Background()))
	assert.Error(t, ValidSchedule("every day"))
	assert.NoError(t, ValidSchedule(DefaultSchedule))
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := &Service{Source: &stubSource{}, Transport: &flakyTransport{}, Log: zerolog.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder service did not stop")
	}
}
