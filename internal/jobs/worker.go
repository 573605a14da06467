package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultEmailDelay       = 10 * time.Second
	DefaultCertificateDelay = 15 * time.Second
)

// Cycler is one unit of repeated work.
type Cycler interface {
	Cycle(ctx context.Context) (CycleStats, error)
}

// Worker drives a Cycler forever: cycle, then wait Delay, then cycle again.
// The delay runs from the end of one cycle to the start of the next, so a
// worker never overlaps itself.
type Worker struct {
	Name      string
	Family    Family
	Processor Cycler
	Delay     time.Duration
	Log       zerolog.Logger
}

func NewWorker(p *Processor, delay time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		Name:      string(p.Family()) + "-worker",
		Family:    p.Family(),
		Processor: p,
		Delay:     delay,
		Log:       log.With().Str("component", string(p.Family())+"-worker").Logger(),
	}
}

// Serve implements suture.Service. It returns only when ctx is cancelled.
// A cycle already in flight runs to completion; cancellation is observed
// between cycles and during the wait.
func (w *Worker) Serve(ctx context.Context) error {
	w.Log.Info().Dur("delay", w.Delay).Msg("worker started")
	defer w.Log.Info().Msg("worker stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		w.runCycle(context.WithoutCancel(ctx))
		timer.Reset(w.Delay)
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	stats, err := w.Processor.Cycle(ctx)
	if err != nil {
		cycleErrorsTotal.WithLabelValues(string(w.Family)).Inc()
		w.Log.Error().Err(err).Msg("cycle failed")
		return
	}
	if stats.Claimed > 0 {
		w.Log.Info().
			Int("claimed", stats.Claimed).
			Int("completed", stats.Completed).
			Int("retried", stats.Retried).
			Int("failed", stats.Failed).
			Msg("cycle done")
	}
}

func (w *Worker) String() string { return w.Name }
