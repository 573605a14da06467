package event

import (
	"strconv"
	"time"

	"github.com/lib/pq"

	"eventhub/internal/jobs"
)

type Event struct {
	ID          uint64     `gorm:"primaryKey"`
	Title       string     `gorm:"type:text;not null"`
	Description string     `gorm:"type:text;not null;default:''"`
	Venue       string     `gorm:"type:text;not null;default:''"`
	StartsAt    *time.Time `gorm:"type:timestamptz;index"`
	Link        string     `gorm:"type:text;not null;default:''"`

	Tags pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedBy uint64    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// Registration is one seat at an event. UserID is nil for guests.
type Registration struct {
	ID      uint64  `gorm:"primaryKey"`
	EventID uint64  `gorm:"index;not null"`
	UserID  *uint64 `gorm:"index"`
	Name    string  `gorm:"type:text;not null;default:''"`
	Email   string  `gorm:"type:text;not null"`
	Phone   string  `gorm:"type:text;not null;default:''"`
	TokenID string  `gorm:"type:text;uniqueIndex;not null"`

	Attended            bool       `gorm:"not null;default:false"`
	CertificateQueuedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// Snapshot copies the fields jobs carry. link overrides Event.Link when set.
func (e *Event) Snapshot(link string) jobs.EventSnapshot {
	s := jobs.EventSnapshot{
		ID:          strconv.FormatUint(e.ID, 10),
		Title:       e.Title,
		Venue:       e.Venue,
		Description: e.Description,
		Link:        e.Link,
	}
	if e.StartsAt != nil {
		s.DateTime = e.StartsAt.UTC().Format(time.RFC3339)
	}
	if link != "" {
		s.Link = link
	}
	return s
}
