//go:build integration

package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"eventhub/internal/auth"
	"eventhub/internal/event"
	"eventhub/internal/jobs"
	"eventhub/internal/testinfra"
)

func setup(t *testing.T) (*event.Service, *gorm.DB, *jobs.GormStore) {
	t.Helper()
	gdb := testinfra.Postgres(t)
	for _, u := range []auth.User{
		{Email: "asha@example.com", Name: "Asha", PasswordHash: "x"},
		{Email: "ravi@example.com", Name: "Ravi", PasswordHash: "x"},
	} {
		require.NoError(t, gdb.Create(&u).Error)
	}
	return event.NewService(gdb, "https://events.test/", zerolog.Nop()), gdb, jobs.NewGormStore(gdb)
}

func TestService_CreateEventNotifiesUsers(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	starts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	ev, queued, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{
		Title:       "DevConf",
		Description: "Talks on #golang and #postgres",
		StartsAt:    &starts,
		Notify:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.ElementsMatch(t, []string{"golang", "postgres"}, []string(ev.Tags))

	list, err := store.List(ctx, jobs.FamilyEmail, jobs.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, jobs.KindNewEvent, list[0].Kind)

	var p jobs.NewEventPayload
	require.NoError(t, list[0].Decode(&p))
	assert.Equal(t, "DevConf", p.Event.Title)
	assert.Equal(t, "https://events.test/events/1", p.EventLink)
}

func TestService_AlertExternalEventSkipsBadAddresses(t *testing.T) {
	svc, gdb, store := setup(t)
	ctx := context.Background()
	require.NoError(t, gdb.Create(&auth.User{Email: "not-an-address", Name: "Broken", PasswordHash: "x"}).Error)

	queued, err := svc.AlertExternalEvent(ctx, event.ExternalAlertInput{
		Title: "GopherCon",
		Link:  "https://gophercon.example/",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	list, err := store.List(ctx, jobs.FamilyEmail, jobs.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, j := range list {
		assert.Equal(t, jobs.KindExternalEventAlert, j.Kind)
		assert.NotEqual(t, "not-an-address", j.To)
	}
}

func TestService_RegisterQueuesOneEmail(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()

	ev, _, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{Title: "DevConf"})
	require.NoError(t, err)

	uid := uint64(2)
	reg, err := svc.Register(ctx, ev.ID, &uid, event.RegisterInput{})
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", reg.Email)
	assert.Len(t, reg.TokenID, 12)

	list, err := store.List(ctx, jobs.FamilyEmail, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, jobs.KindRegistration, list[0].Kind)

	var p jobs.RegistrationPayload
	require.NoError(t, list[0].Decode(&p))
	assert.Equal(t, reg.TokenID, p.TokenID)

	_, err = svc.Register(ctx, 999, nil, event.RegisterInput{Email: "guest@example.com"})
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestService_RegisterRollsBackWhenEnqueueFails(t *testing.T) {
	svc, gdb, _ := setup(t)
	ctx := context.Background()

	ev, _, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{Title: "DevConf"})
	require.NoError(t, err)

	svc.Queue = func(*gorm.DB) jobs.Store { return failingQueue{} }
	_, err = svc.Register(ctx, ev.ID, nil, event.RegisterInput{Name: "Guest", Email: "guest@example.com"})
	require.Error(t, err)

	var n int64
	require.NoError(t, gdb.Model(&event.Registration{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestService_IssueCertificatesOnce(t *testing.T) {
	svc, gdb, store := setup(t)
	ctx := context.Background()

	ev, _, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{Title: "DevConf"})
	require.NoError(t, err)

	a, err := svc.Register(ctx, ev.ID, nil, event.RegisterInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, ev.ID, nil, event.RegisterInput{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	marked, err := svc.MarkAttendance(ctx, ev.ID, []uint64{a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	n, err := svc.IssueCertificates(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.IssueCertificates(ctx, ev.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := store.List(ctx, jobs.FamilyCertificate, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a@example.com", list[0].To)
	assert.Nil(t, list[0].UserRef)

	var reg event.Registration
	require.NoError(t, gdb.First(&reg, a.ID).Error)
	assert.NotNil(t, reg.CertificateQueuedAt)
}

func TestService_EventsStartingBetween(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	tomorrow := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	later := tomorrow.AddDate(0, 0, 5)

	ev, _, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{Title: "DevConf", StartsAt: &tomorrow})
	require.NoError(t, err)
	other, _, err := svc.CreateEvent(ctx, 1, event.CreateEventInput{Title: "Later", StartsAt: &later})
	require.NoError(t, err)

	_, err = svc.Register(ctx, ev.ID, nil, event.RegisterInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, other.ID, nil, event.RegisterInput{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	from := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	got, err := svc.EventsStartingBetween(ctx, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a@example.com", got[0].Email)
	assert.Equal(t, "DevConf", got[0].Event.Title)
	assert.Equal(t, "2025-05-02T10:00:00Z", got[0].Event.DateTime)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, *jobs.Job) (string, error) {
	return "", errors.New("queue down")
}

func (failingQueue) ClaimBatch(context.Context, jobs.Family, int) ([]*jobs.Job, error) {
	return nil, nil
}

func (failingQueue) MarkProcessing(context.Context, jobs.Family, []string) ([]string, error) {
	return nil, nil
}

func (failingQueue) Resolve(context.Context, jobs.Family, string, jobs.Outcome, error) error {
	return nil
}
