package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize   = 5
	DefaultMaxAttempts = 3
)

// Handler does the work of one job: render, generate and send. Any returned
// error counts as a failed attempt.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

type ProcessorConfig struct {
	Family      Family
	Store       Store
	Handler     Handler
	BatchSize   int
	MaxAttempts int

	// Throttle, when set, is waited on before every job of a batch.
	Throttle *rate.Limiter
	Logger   zerolog.Logger
}

// Processor runs claim, mark and execute cycles for one family.
type Processor struct {
	family      Family
	store       Store
	handler     Handler
	batchSize   int
	maxAttempts int
	throttle    *rate.Limiter
	log         zerolog.Logger
}

func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if !cfg.Family.Valid() {
		return nil, ErrUnknownFamily
	}
	if cfg.Store == nil || cfg.Handler == nil {
		return nil, fmt.Errorf("jobs: %s processor needs a store and a handler", cfg.Family)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Processor{
		family:      cfg.Family,
		store:       cfg.Store,
		handler:     cfg.Handler,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		throttle:    cfg.Throttle,
		log:         cfg.Logger.With().Str("family", string(cfg.Family)).Logger(),
	}, nil
}

func (p *Processor) Family() Family { return p.family }

type CycleStats struct {
	Claimed   int
	Completed int
	Retried   int
	Failed    int
}

// Cycle processes at most one batch. Only store errors from claim and mark
// are returned; per-job failures become retry or failed transitions.
func (p *Processor) Cycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	start := time.Now()
	defer func() {
		cycleDuration.WithLabelValues(string(p.family)).Observe(time.Since(start).Seconds())
	}()

	batch, err := p.store.ClaimBatch(ctx, p.family, p.batchSize)
	if err != nil {
		return stats, err
	}
	if len(batch) == 0 {
		return stats, nil
	}

	ids := make([]string, len(batch))
	for i, j := range batch {
		ids[i] = j.ID
	}
	marked, err := p.store.MarkProcessing(ctx, p.family, ids)
	if err != nil {
		return stats, err
	}
	owned := make(map[string]bool, len(marked))
	for _, id := range marked {
		owned[id] = true
	}

	for _, job := range batch {
		if !owned[job.ID] {
			continue
		}
		stats.Claimed++

		if p.throttle != nil {
			if err := p.throttle.Wait(ctx); err != nil {
				p.log.Warn().Err(err).Msg("throttle wait interrupted")
			}
		}

		outcome, jobErr := p.run(ctx, job)
		if err := p.store.Resolve(ctx, p.family, job.ID, outcome, jobErr); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Str("outcome", string(outcome)).Msg("resolve job")
			continue
		}
		resolvedTotal.WithLabelValues(string(p.family), string(outcome)).Inc()

		switch outcome {
		case OutcomeCompleted:
			stats.Completed++
		case OutcomeRetry:
			stats.Retried++
		case OutcomeFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (p *Processor) run(ctx context.Context, job *Job) (Outcome, error) {
	start := time.Now()
	err := p.invoke(ctx, job)
	jobDuration.WithLabelValues(string(p.family)).Observe(time.Since(start).Seconds())

	if err == nil {
		p.log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("job completed")
		return OutcomeCompleted, nil
	}

	attempt := job.Attempts + 1
	ev := p.log.Warn()
	outcome := OutcomeRetry
	if attempt >= p.maxAttempts {
		ev = p.log.Error()
		outcome = OutcomeFailed
	}
	ev.Err(err).
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("attempt", attempt).
		Str("outcome", string(outcome)).
		Msg("job attempt failed")
	return outcome, err
}

func (p *Processor) invoke(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", p.family, r)
		}
	}()
	return p.handler.Handle(ctx, job)
}
