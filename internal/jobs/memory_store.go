package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Admin = (*MemoryStore)(nil)
)

// MemoryStore is an in-process queue. Jobs are kept per family in insertion
// order, which is also created_at order.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[Family]map[string]*Job
	order map[Family][]string
	seq   int64
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[Family]map[string]*Job),
		order: make(map[Family][]string),
		clock: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	m.clock = clock
	return m
}

func (m *MemoryStore) Enqueue(_ context.Context, job *Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := job.clone()
	stored.ID = uuid.NewString()
	stored.Status = StatusPending
	stored.Attempts = 0
	stored.LastError = nil
	stored.CreatedAt = m.clock()
	stored.UpdatedAt = stored.CreatedAt
	m.seq++
	stored.Seq = m.seq

	if m.jobs[job.Family] == nil {
		m.jobs[job.Family] = make(map[string]*Job)
	}
	m.jobs[job.Family][stored.ID] = stored
	m.order[job.Family] = append(m.order[job.Family], stored.ID)

	job.ID = stored.ID
	job.Status = stored.Status
	job.CreatedAt = stored.CreatedAt
	job.UpdatedAt = stored.UpdatedAt
	job.Seq = stored.Seq
	enqueuedTotal.WithLabelValues(string(job.Family)).Inc()
	return stored.ID, nil
}

func (m *MemoryStore) ClaimBatch(_ context.Context, family Family, limit int) ([]*Job, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Job
	for _, id := range m.sortedIDs(family) {
		if len(out) >= limit {
			break
		}
		if j := m.jobs[family][id]; j.Status == StatusPending {
			out = append(out, j.clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, family Family, ids []string) ([]string, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	flipped := make([]string, 0, len(ids))
	for _, id := range ids {
		j, ok := m.jobs[family][id]
		if !ok || j.Status != StatusPending {
			continue
		}
		j.Status = StatusProcessing
		j.UpdatedAt = now
		flipped = append(flipped, id)
	}
	return flipped, nil
}

func (m *MemoryStore) Resolve(_ context.Context, family Family, id string, outcome Outcome, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[family][id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusProcessing {
		return ErrNotProcessing
	}

	switch outcome {
	case OutcomeCompleted:
		j.Status = StatusCompleted
	case OutcomeRetry:
		j.Status = StatusPending
		j.Attempts++
		j.LastError = errorText(cause)
	case OutcomeFailed:
		j.Status = StatusFailed
		j.Attempts++
		j.LastError = errorText(cause)
	default:
		return ErrNotProcessing
	}
	j.UpdatedAt = m.clock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, family Family, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[family][id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.clone(), nil
}

func (m *MemoryStore) List(_ context.Context, family Family, status Status, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Job
	for _, id := range m.sortedIDs(family) {
		if limit > 0 && len(out) >= limit {
			break
		}
		if j := m.jobs[family][id]; status == "" || j.Status == status {
			out = append(out, j.clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, family Family, status Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, j := range m.jobs[family] {
		if status == "" || j.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RequeueStale(_ context.Context, family Family, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var n int64
	for _, j := range m.jobs[family] {
		if j.Status == StatusProcessing && j.UpdatedAt.Before(olderThan) {
			j.Status = StatusPending
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// sortedIDs orders by created_at, then by insertion sequence. Caller holds mu.
func (m *MemoryStore) sortedIDs(family Family) []string {
	ids := append([]string(nil), m.order[family]...)
	sort.Slice(ids, func(a, b int) bool {
		ja, jb := m.jobs[family][ids[a]], m.jobs[family][ids[b]]
		if !ja.CreatedAt.Equal(jb.CreatedAt) {
			return ja.CreatedAt.Before(jb.CreatedAt)
		}
		return ja.Seq < jb.Seq
	})
	return ids
}
