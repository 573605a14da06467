package jobs

import (
	"context"
	"time"
)

// Store is the durable queue shared by producers and processors.
type Store interface {
	// Enqueue validates and inserts a pending job. Returns the new id.
	Enqueue(ctx context.Context, job *Job) (string, error)

	// ClaimBatch reads up to limit pending jobs, oldest first. It does not
	// change their status; MarkProcessing does.
	ClaimBatch(ctx context.Context, family Family, limit int) ([]*Job, error)

	// MarkProcessing flips the given ids from pending to processing in one
	// conditional update and returns the ids it actually flipped. A job that
	// another caller already marked is not returned.
	MarkProcessing(ctx context.Context, family Family, ids []string) ([]string, error)

	// Resolve moves a processing job to completed, back to pending (retry)
	// or to failed. Retry and failed increment attempts and record cause.
	// Returns ErrNotProcessing for any job not currently processing.
	Resolve(ctx context.Context, family Family, id string, outcome Outcome, cause error) error
}

// Admin is the operational side of the queue.
type Admin interface {
	Get(ctx context.Context, family Family, id string) (*Job, error)
	List(ctx context.Context, family Family, status Status, limit int) ([]*Job, error)
	Count(ctx context.Context, family Family, status Status) (int64, error)

	// RequeueStale returns processing jobs last touched before olderThan
	// to pending. Attempts are left unchanged.
	RequeueStale(ctx context.Context, family Family, olderThan time.Time) (int64, error)
}

func errorText(cause error) *string {
	msg := "unknown error"
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &msg
}
