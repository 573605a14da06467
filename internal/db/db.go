package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eventhub/internal/auth"
	"eventhub/internal/event"
	"eventhub/internal/jobs"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&event.Event{},
		&event.Registration{},
	); err != nil {
		return err
	}

	// One table per job family, same shape.
	for _, f := range []jobs.Family{jobs.FamilyEmail, jobs.FamilyCertificate} {
		if err := gdb.Table(f.Table()).AutoMigrate(&jobs.Job{}); err != nil {
			return fmt.Errorf("migrate %s: %w", f.Table(), err)
		}
	}

	stmts := []string{
		// insertion sequence, tiebreak for rows sharing a created_at
		`alter table email_jobs add column if not exists seq bigserial;`,
		`alter table certificate_jobs add column if not exists seq bigserial;`,
		// claim order
		`drop index if exists idx_email_jobs_status_created;`,
		`drop index if exists idx_certificate_jobs_status_created;`,
		`create index if not exists idx_email_jobs_status_created_seq on email_jobs(status, created_at, seq);`,
		`create index if not exists idx_certificate_jobs_status_created_seq on certificate_jobs(status, created_at, seq);`,
		// stale sweep
		`create index if not exists idx_email_jobs_status_updated on email_jobs(status, updated_at);`,
		`create index if not exists idx_certificate_jobs_status_updated on certificate_jobs(status, updated_at);`,

		`create index if not exists idx_registrations_event_attended on registrations(event_id, attended) where certificate_queued_at is null;`,
		`create index if not exists idx_events_tags on events using gin (tags);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
