package event

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventhub/internal/auth"
	"eventhub/internal/jobs"
	"eventhub/internal/reminder"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Service owns events and registrations. Every job it produces is enqueued
// in the same transaction as the write that caused it.
type Service struct {
	DB      *gorm.DB
	BaseURL string
	Log     zerolog.Logger

	// Queue binds the job store to a transaction.
	Queue func(tx *gorm.DB) jobs.Store
}

func NewService(db *gorm.DB, baseURL string, log zerolog.Logger) *Service {
	return &Service{
		DB:      db,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Log:     log,
		Queue:   func(tx *gorm.DB) jobs.Store { return jobs.NewGormStore(tx) },
	}
}

type CreateEventInput struct {
	Title       string
	Description string
	Venue       string
	StartsAt    *time.Time
	Link        string
	Tags        []string
	Notify      bool
}

// CreateEvent stores the event and, with Notify, queues one NEW_EVENT email
// per user. Returns the number of queued emails.
func (s *Service) CreateEvent(ctx context.Context, createdBy uint64, in CreateEventInput) (*Event, int, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, 0, fmt.Errorf("%w: title required", ErrInvalidInput)
	}

	ev := Event{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Venue:       strings.TrimSpace(in.Venue),
		StartsAt:    in.StartsAt,
		Link:        strings.TrimSpace(in.Link),
		Tags:        pq.StringArray(Tags(in.Tags, in.Description)),
		CreatedBy:   createdBy,
	}

	queued := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		if !in.Notify {
			return nil
		}

		users, err := recipients(tx)
		if err != nil {
			return err
		}
		q := s.Queue(tx)
		link := s.eventLink(ev.ID)
		for _, u := range users {
			job, err := jobs.NewEmailJob(jobs.KindNewEvent, u.Email, jobs.NewEventPayload{
				UserName:  u.Name,
				Event:     ev.Snapshot(link),
				EventLink: link,
			})
			if err != nil {
				s.Log.Warn().Err(err).Uint64("user_id", u.ID).Msg("skip new-event notification")
				continue
			}
			if _, err := q.Enqueue(ctx, job); err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &ev, queued, nil
}

func (s *Service) ListEvents(ctx context.Context, upcoming bool, limit int) ([]Event, error) {
	q := s.DB.WithContext(ctx).Order("starts_at asc nulls last, id asc")
	if upcoming {
		q = q.Where("starts_at is null or starts_at >= ?", time.Now())
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Event
	err := q.Limit(limit).Find(&out).Error
	return out, err
}

func (s *Service) GetEvent(ctx context.Context, id uint64) (*Event, error) {
	var ev Event
	if err := s.DB.WithContext(ctx).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

type RegisterInput struct {
	Name  string
	Email string
	Phone string
}

// Register books a seat and queues exactly one REGISTRATION email. A nil
// userID registers a guest; otherwise missing name and email come from the
// user record.
func (s *Service) Register(ctx context.Context, eventID uint64, userID *uint64, in RegisterInput) (*Registration, error) {
	var reg Registration
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev Event
		if err := tx.First(&ev, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if userID != nil {
			var u auth.User
			if err := tx.First(&u, *userID).Error; err != nil {
				return err
			}
			if in.Email == "" {
				in.Email = u.Email
			}
			if in.Name == "" {
				in.Name = u.Name
			}
		}

		reg = Registration{
			EventID: ev.ID,
			UserID:  userID,
			Name:    strings.TrimSpace(in.Name),
			Email:   strings.ToLower(strings.TrimSpace(in.Email)),
			Phone:   strings.TrimSpace(in.Phone),
			TokenID: newToken(),
		}

		job, err := jobs.NewEmailJob(jobs.KindRegistration, reg.Email, jobs.RegistrationPayload{
			UserName:   reg.Name,
			UserEmail:  reg.Email,
			UserPhone:  reg.Phone,
			Event:      ev.Snapshot(s.eventLink(ev.ID)),
			TokenID:    reg.TokenID,
			TicketLink: s.ticketLink(reg.TokenID),
		})
		if err != nil {
			return err
		}

		if err := tx.Create(&reg).Error; err != nil {
			return err
		}
		_, err = s.Queue(tx).Enqueue(ctx, job)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// MarkAttendance flags the given registrations of the event as attended.
func (s *Service) MarkAttendance(ctx context.Context, eventID uint64, registrationIDs []uint64) (int64, error) {
	if len(registrationIDs) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ? AND id IN ?", eventID, registrationIDs).
		Update("attended", true)
	return res.RowsAffected, res.Error
}

// IssueCertificates queues one certificate per attendee that has not had one
// queued yet and stamps the registration in the same transaction.
func (s *Service) IssueCertificates(ctx context.Context, eventID uint64) (int, error) {
	queued := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev Event
		if err := tx.First(&ev, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var regs []Registration
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ? AND attended AND certificate_queued_at IS NULL", eventID).
			Order("id asc").
			Find(&regs).Error; err != nil {
			return err
		}

		q := s.Queue(tx)
		now := time.Now().UTC()
		snap := ev.Snapshot(s.eventLink(ev.ID))
		for _, r := range regs {
			var userRef *string
			if r.UserID != nil {
				ref := strconv.FormatUint(*r.UserID, 10)
				userRef = &ref
			}
			job, err := jobs.NewCertificateJob(jobs.CertificateRef{
				RegistrationRef: strconv.FormatUint(r.ID, 10),
				EventRef:        snap.ID,
				UserRef:         userRef,
			}, jobs.CertificatePayload{
				UserName:  r.Name,
				UserEmail: r.Email,
				Event:     snap,
				IssuedAt:  now.Format(time.RFC3339),
			})
			if err != nil {
				s.Log.Warn().Err(err).Uint64("registration_id", r.ID).Msg("skip certificate")
				continue
			}
			if _, err := q.Enqueue(ctx, job); err != nil {
				return err
			}
			if err := tx.Model(&Registration{}).Where("id = ?", r.ID).
				Update("certificate_queued_at", now).Error; err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	return queued, err
}

type ExternalAlertInput struct {
	Title       string
	Description string
	Venue       string
	StartsAt    *time.Time
	Link        string
}

// AlertExternalEvent queues an EXTERNAL_EVENT_ALERT email to every user.
// External events are not stored.
func (s *Service) AlertExternalEvent(ctx context.Context, in ExternalAlertInput) (int, error) {
	if strings.TrimSpace(in.Title) == "" {
		return 0, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	snap := jobs.EventSnapshot{
		Title:       strings.TrimSpace(in.Title),
		Venue:       strings.TrimSpace(in.Venue),
		Description: in.Description,
		Link:        strings.TrimSpace(in.Link),
	}
	if in.StartsAt != nil {
		snap.DateTime = in.StartsAt.UTC().Format(time.RFC3339)
	}

	queued := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := recipients(tx)
		if err != nil {
			return err
		}
		q := s.Queue(tx)
		for _, u := range users {
			job, err := jobs.NewEmailJob(jobs.KindExternalEventAlert, u.Email, jobs.ExternalEventAlertPayload{
				UserName:     u.Name,
				Event:        snap,
				ExternalLink: snap.Link,
			})
			if err != nil {
				s.Log.Warn().Err(err).Uint64("user_id", u.ID).Msg("skip external-event alert")
				continue
			}
			if _, err := q.Enqueue(ctx, job); err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	return queued, err
}

// EventsStartingBetween lists the registrants of events starting in
// [from, to), for the daily reminder.
func (s *Service) EventsStartingBetween(ctx context.Context, from, to time.Time) ([]reminder.Recipient, error) {
	type row struct {
		Registration
		EventTitle       string
		EventVenue       string
		EventDescription string
		EventLink        string
		EventStartsAt    time.Time
	}
	var rows []row
	err := s.DB.WithContext(ctx).Raw(`
select r.*,
       e.title as event_title,
       e.venue as event_venue,
       e.description as event_description,
       e.link as event_link,
       e.starts_at as event_starts_at
from registrations r
join events e on e.id = r.event_id
where e.starts_at >= ? and e.starts_at < ?
order by e.starts_at asc, r.id asc`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]reminder.Recipient, 0, len(rows))
	for _, r := range rows {
		startsAt := r.EventStartsAt
		ev := Event{
			ID:          r.EventID,
			Title:       r.EventTitle,
			Venue:       r.EventVenue,
			Description: r.EventDescription,
			Link:        r.EventLink,
			StartsAt:    &startsAt,
		}
		out = append(out, reminder.Recipient{
			Email:   r.Email,
			Name:    r.Name,
			TokenID: r.TokenID,
			Event:   ev.Snapshot(s.eventLink(ev.ID)),
		})
	}
	return out, nil
}

func (s *Service) eventLink(id uint64) string {
	if s.BaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/events/%d", s.BaseURL, id)
}

func (s *Service) ticketLink(token string) string {
	if s.BaseURL == "" {
		return ""
	}
	return s.BaseURL + "/tickets/" + token
}

type recipient struct {
	ID    uint64
	Name  string
	Email string
}

func recipients(tx *gorm.DB) ([]recipient, error) {
	var out []recipient
	err := tx.Model(&auth.User{}).Select("id, name, email").Order("id asc").Scan(&out).Error
	return out, err
}

// newToken is a 12 character upper-case ticket token.
func newToken() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}
