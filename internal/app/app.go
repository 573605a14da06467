// Package app wires configuration into the background services.
package app

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"eventhub/internal/config"
	"eventhub/internal/delivery"
	"eventhub/internal/jobs"
	"eventhub/internal/mail"
	"eventhub/internal/pdf"
	"eventhub/internal/reminder"
)

// Queue is what the background services need from job storage.
type Queue interface {
	jobs.Store
	jobs.Admin
}

type Background struct {
	Email       *jobs.Processor
	Certificate *jobs.Processor
	Services    []suture.Service
}

func NewTransport(cfg config.Config, log zerolog.Logger) mail.Transport {
	if !cfg.SMTPEnabled() {
		log.Warn().Msg("SMTP_HOST not set, outgoing mail is only logged")
		return mail.LogTransport{Log: log.With().Str("component", "mail").Logger()}
	}
	return mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

func NewGenerator(cfg config.Config, log zerolog.Logger) *pdf.Generator {
	log = log.With().Str("component", "pdf").Logger()
	var fonts pdf.FontSource
	if cfg.FontURL != "" {
		fonts = pdf.NewRemoteFont(cfg.FontURL, cfg.FontTimeout, log)
	}
	return &pdf.Generator{
		Assets:        pdf.Assets{Dir: cfg.AssetsDir, Log: log},
		Fonts:         fonts,
		Location:      cfg.Location(),
		Signatories:   pdf.ParseSignatories(cfg.Signatories),
		CommunityText: cfg.CommunityText,
		Log:           log,
	}
}

// NewBackground builds both job workers, the optional stale sweeper and,
// when source is set, the daily reminder.
func NewBackground(cfg config.Config, q Queue, source reminder.Source, transport mail.Transport, log zerolog.Logger) (*Background, error) {
	renderer := mail.Renderer{Location: cfg.Location()}
	docs := NewGenerator(cfg, log)

	email, err := jobs.NewProcessor(jobs.ProcessorConfig{
		Family:      jobs.FamilyEmail,
		Store:       q,
		Handler:     &delivery.EmailHandler{Renderer: renderer, Docs: docs, Transport: transport, Log: log},
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("email processor: %w", err)
	}

	var throttle *rate.Limiter
	if cfg.CertificateThrottle > 0 {
		throttle = rate.NewLimiter(rate.Every(cfg.CertificateThrottle), 1)
	}
	cert, err := jobs.NewProcessor(jobs.ProcessorConfig{
		Family:      jobs.FamilyCertificate,
		Store:       q,
		Handler:     &delivery.CertificateHandler{Renderer: renderer, Docs: docs, Transport: transport, Log: log},
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Throttle:    throttle,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("certificate processor: %w", err)
	}

	b := &Background{Email: email, Certificate: cert}
	b.Services = append(b.Services,
		jobs.NewWorker(email, cfg.EmailDelay, log),
		jobs.NewWorker(cert, cfg.CertificateDelay, log),
	)

	if sw := jobs.NewSweeper(q, cfg.StaleAfter, cfg.SweepInterval, log); sw.Enabled() {
		b.Services = append(b.Services, sw)
	}

	if source != nil {
		if err := reminder.ValidSchedule(cfg.ReminderCron); err != nil {
			return nil, fmt.Errorf("reminder schedule %q: %w", cfg.ReminderCron, err)
		}
		b.Services = append(b.Services, &reminder.Service{
			Source:    source,
			Renderer:  renderer,
			Transport: transport,
			Location:  cfg.Location(),
			Schedule:  cfg.ReminderCron,
			Log:       log.With().Str("component", "reminder").Logger(),
		})
	}
	return b, nil
}
