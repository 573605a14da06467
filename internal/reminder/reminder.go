// Package reminder emails every registrant of tomorrow's events once a day.
// Reminders bypass the job queue: a failed send is logged and not retried.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"eventhub/internal/jobs"
	"eventhub/internal/mail"
)

const DefaultSchedule = "0 9 * * *"

// Recipient is one registrant of an upcoming event.
type Recipient struct {
	Email   string
	Name    string
	TokenID string
	Event   jobs.EventSnapshot
}

// Source lists registrants of events starting in [from, to).
type Source interface {
	EventsStartingBetween(ctx context.Context, from, to time.Time) ([]Recipient, error)
}

type Service struct {
	Source    Source
	Renderer  mail.Renderer
	Transport mail.Transport
	Location  *time.Location
	Schedule  string
	Log       zerolog.Logger
}

// Result counts one run.
type Result struct {
	Sent    int
	Skipped int
}

// Window returns the calendar day after now in loc.
func Window(now time.Time, loc *time.Location) (from, to time.Time) {
	local := now.In(loc)
	from = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// SendReminders mails every registrant of events that start tomorrow.
// Only a failure to list recipients is returned.
func (s *Service) SendReminders(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	from, to := Window(now, s.location())

	recipients, err := s.Source.EventsStartingBetween(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("list reminder recipients: %w", err)
	}

	for _, r := range recipients {
		if err := s.sendOne(ctx, r); err != nil {
			res.Skipped++
			s.Log.Warn().Err(err).Str("to", r.Email).Str("event", r.Event.Title).Msg("reminder not sent")
			continue
		}
		res.Sent++
	}

	s.Log.Info().
		Time("from", from).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Msg("reminders done")
	return res, nil
}

func (s *Service) sendOne(ctx context.Context, r Recipient) error {
	if r.Email == "" {
		return fmt.Errorf("registrant has no email")
	}
	msg, err := s.Renderer.RenderReminder(mail.Reminder{UserName: r.Name, Event: r.Event, TokenID: r.TokenID})
	if err != nil {
		return err
	}
	return s.Transport.Send(ctx, mail.Envelope{To: r.Email, Subject: msg.Subject, HTML: msg.HTML})
}

// Serve implements suture.Service. It fires SendReminders on Schedule in
// Location until ctx is cancelled, then waits for a running batch.
func (s *Service) Serve(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location()))
	schedule := s.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.SendReminders(ctx, time.Now()); err != nil {
			s.Log.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", schedule, err)
	}

	c.Start()
	s.Log.Info().Str("schedule", schedule).Str("tz", s.location().String()).Msg("reminder scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Service) String() string { return "reminder-scheduler" }

func (s *Service) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// ValidSchedule reports whether spec is a standard five-field cron line.
func ValidSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
