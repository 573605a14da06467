package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	_ Store = (*GormStore)(nil)
	_ Admin = (*GormStore)(nil)
)

// GormStore keeps each family in its own Postgres table.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// WithTx returns a store bound to tx, so jobs are enqueued atomically with
// the business write that caused them.
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	return &GormStore{DB: tx}
}

func (s *GormStore) Enqueue(ctx context.Context, job *Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.Status = StatusPending
	job.Attempts = 0
	job.LastError = nil
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.DB.WithContext(ctx).Table(job.Family.Table()).Create(job).Error; err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", job.Family, err)
	}
	enqueuedTotal.WithLabelValues(string(job.Family)).Inc()
	return job.ID, nil
}

func (s *GormStore) ClaimBatch(ctx context.Context, family Family, limit int) ([]*Job, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}

	var out []*Job
	err := s.DB.WithContext(ctx).Raw(`
select *
from `+family.Table()+`
where status = 'pending'
order by created_at asc, seq asc
limit ?`, limit).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("claim %s batch: %w", family, err)
	}
	return out, nil
}

func (s *GormStore) MarkProcessing(ctx context.Context, family Family, ids []string) ([]string, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Only rows still pending are flipped; a concurrent marker that got
	// there first leaves nothing for us.
	var rows []struct{ ID string }
	err := s.DB.WithContext(ctx).Raw(`
update `+family.Table()+`
set status = 'processing', updated_at = now()
where id in ? and status = 'pending'
returning id`, ids).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("mark %s processing: %w", family, err)
	}

	flipped := make([]string, 0, len(rows))
	for _, r := range rows {
		flipped = append(flipped, r.ID)
	}
	return flipped, nil
}

func (s *GormStore) Resolve(ctx context.Context, family Family, id string, outcome Outcome, cause error) error {
	if !family.Valid() {
		return ErrUnknownFamily
	}

	var res *gorm.DB
	db := s.DB.WithContext(ctx)
	switch outcome {
	case OutcomeCompleted:
		res = db.Exec(`
update `+family.Table()+`
set status = 'completed', updated_at = now()
where id = ? and status = 'processing'`, id)
	case OutcomeRetry, OutcomeFailed:
		next := StatusPending
		if outcome == OutcomeFailed {
			next = StatusFailed
		}
		res = db.Exec(`
update `+family.Table()+`
set status = ?, attempts = attempts + 1, last_error = ?, updated_at = now()
where id = ? and status = 'processing'`, next, *errorText(cause), id)
	default:
		return fmt.Errorf("resolve %s: unknown outcome %q", id, outcome)
	}

	if res.Error != nil {
		return fmt.Errorf("resolve %s job %s: %w", family, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotProcessing
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, family Family, id string) (*Job, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}
	var j Job
	err := s.DB.WithContext(ctx).Table(family.Table()).Where("id = ?", id).Take(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *GormStore) List(ctx context.Context, family Family, status Status, limit int) ([]*Job, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}
	q := s.DB.WithContext(ctx).Table(family.Table()).Order("created_at asc, seq asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*Job
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context, family Family, status Status) (int64, error) {
	if !family.Valid() {
		return 0, ErrUnknownFamily
	}
	q := s.DB.WithContext(ctx).Table(family.Table())
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (s *GormStore) RequeueStale(ctx context.Context, family Family, olderThan time.Time) (int64, error) {
	if !family.Valid() {
		return 0, ErrUnknownFamily
	}
	res := s.DB.WithContext(ctx).Exec(`
update `+family.Table()+`
set status = 'pending', updated_at = now()
where status = 'processing' and updated_at < ?`, olderThan)
	if res.Error != nil {
		return 0, fmt.Errorf("requeue stale %s jobs: %w", family, res.Error)
	}
	return res.RowsAffected, nil
}
