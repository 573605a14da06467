package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper returns jobs stranded in processing, e.g. by a crash mid-batch,
// to pending. It does nothing unless StaleAfter is positive.
type Sweeper struct {
	Admin      Admin
	Families   []Family
	StaleAfter time.Duration
	Interval   time.Duration
	Log        zerolog.Logger

	now func() time.Time
}

func NewSweeper(admin Admin, staleAfter, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		Admin:      admin,
		Families:   []Family{FamilyEmail, FamilyCertificate},
		StaleAfter: staleAfter,
		Interval:   interval,
		Log:        log.With().Str("component", "sweeper").Logger(),
		now:        time.Now,
	}
}

func (s *Sweeper) Enabled() bool { return s.StaleAfter > 0 }

// Sweep runs one pass over every family and returns the number of jobs
// requeued.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	cutoff := now().Add(-s.StaleAfter)

	var total int64
	for _, f := range s.Families {
		n, err := s.Admin.RequeueStale(ctx, f, cutoff)
		if err != nil {
			return total, err
		}
		if n > 0 {
			requeuedStaleTotal.WithLabelValues(string(f)).Add(float64(n))
			s.Log.Warn().Str("family", string(f)).Int64("requeued", n).Msg("requeued stale processing jobs")
		}
		total += n
	}
	return total, nil
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	if !s.Enabled() {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.Log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

func (s *Sweeper) String() string { return "stale-job-sweeper" }
