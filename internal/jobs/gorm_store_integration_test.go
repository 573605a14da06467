//go:build integration

package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"eventhub/internal/jobs"
	"eventhub/internal/testinfra"
)

func newEmail(t *testing.T, to string) *jobs.Job {
	t.Helper()
	job, err := jobs.NewEmailJob(jobs.KindNewEvent, to, jobs.NewEventPayload{
		UserName: "Asha",
		Event:    jobs.EventSnapshot{Title: "DevConf"},
	})
	require.NoError(t, err)
	return job
}

func TestGormStore_Lifecycle(t *testing.T) {
	gdb := testinfra.Postgres(t)
	s := jobs.NewGormStore(gdb)
	ctx := context.Background()

	var ids []string
	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		id, err := s.Enqueue(ctx, newEmail(t, to))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	batch, err := s.ClaimBatch(ctx, jobs.FamilyEmail, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, "a@example.com", batch[0].To)

	flipped, err := s.MarkProcessing(ctx, jobs.FamilyEmail, []string{ids[0], ids[1]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0], ids[1]}, flipped)

	again, err := s.MarkProcessing(ctx, jobs.FamilyEmail, []string{ids[0]})
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.Resolve(ctx, jobs.FamilyEmail, ids[0], jobs.OutcomeCompleted, nil))
	require.NoError(t, s.Resolve(ctx, jobs.FamilyEmail, ids[1], jobs.OutcomeRetry, errors.New("smtp timeout")))
	assert.ErrorIs(t, s.Resolve(ctx, jobs.FamilyEmail, ids[0], jobs.OutcomeCompleted, nil), jobs.ErrNotProcessing)

	got, err := s.Get(ctx, jobs.FamilyEmail, ids[1])
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "smtp timeout", *got.LastError)

	n, err := s.Count(ctx, jobs.FamilyEmail, jobs.StatusCompleted)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Count(ctx, jobs.FamilyCertificate, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Get(ctx, jobs.FamilyEmail, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestGormStore_ClaimIsFIFOWithinSameInstant(t *testing.T) {
	gdb := testinfra.Postgres(t)
	s := jobs.NewGormStore(gdb)
	ctx := context.Background()

	var want []string
	for _, to := range []string{"d@example.com", "c@example.com", "b@example.com", "a@example.com"} {
		id, err := s.Enqueue(ctx, newEmail(t, to))
		require.NoError(t, err)
		want = append(want, id)
	}
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, gdb.Exec(`update email_jobs set created_at = ?`, at).Error)

	batch, err := s.ClaimBatch(ctx, jobs.FamilyEmail, 4)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	for i, j := range batch {
		assert.Equal(t, want[i], j.ID)
	}

	listed, err := s.List(ctx, jobs.FamilyEmail, jobs.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.Equal(t, want[0], listed[0].ID)
	assert.Less(t, listed[0].Seq, listed[3].Seq)
}

func TestGormStore_EnqueueRollsBackWithTransaction(t *testing.T) {
	gdb := testinfra.Postgres(t)
	ctx := context.Background()

	boom := errors.New("business write failed")
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if _, err := jobs.NewGormStore(tx).Enqueue(ctx, newEmail(t, "a@example.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := jobs.NewGormStore(gdb).Count(ctx, jobs.FamilyEmail, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormStore_RequeueStale(t *testing.T) {
	gdb := testinfra.Postgres(t)
	s := jobs.NewGormStore(gdb)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, newEmail(t, "a@example.com"))
	require.NoError(t, err)
	_, err = s.MarkProcessing(ctx, jobs.FamilyEmail, []string{id})
	require.NoError(t, err)

	n, err := s.RequeueStale(ctx, jobs.FamilyEmail, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.RequeueStale(ctx, jobs.FamilyEmail, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Get(ctx, jobs.FamilyEmail, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
}
