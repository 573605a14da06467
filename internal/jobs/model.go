package jobs

import (
	"time"

	"gorm.io/datatypes"
)

type Family string

const (
	FamilyEmail       Family = "email"
	FamilyCertificate Family = "certificate"
)

// Table is the collection backing the family.
func (f Family) Table() string {
	switch f {
	case FamilyCertificate:
		return "certificate_jobs"
	default:
		return "email_jobs"
	}
}

func (f Family) Valid() bool {
	return f == FamilyEmail || f == FamilyCertificate
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, true
	}
	return "", false
}

// Kind selects the render/generate path of a job.
type Kind string

const (
	KindRegistration       Kind = "REGISTRATION"
	KindNewEvent           Kind = "NEW_EVENT"
	KindExternalEventAlert Kind = "EXTERNAL_EVENT_ALERT"

	// KindCertificate is the only kind of the certificate family.
	KindCertificate Kind = "CERTIFICATE"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetry     Outcome = "retry"
	OutcomeFailed    Outcome = "failed"
)

// Job is one unit of asynchronous work. Payload is a snapshot taken at
// enqueue time and is never rewritten afterwards.
type Job struct {
	ID     string `gorm:"primaryKey;type:text"`
	Family Family `gorm:"type:text;not null"`
	Kind   Kind   `gorm:"type:text;not null"`

	// email family
	To      string `gorm:"column:recipient;type:text;not null;default:''"`
	Subject string `gorm:"type:text;not null;default:''"`
	HTML    string `gorm:"column:html;type:text;not null;default:''"`

	// certificate family
	RegistrationRef string  `gorm:"type:text;not null;default:''"`
	EventRef        string  `gorm:"type:text;not null;default:''"`
	UserRef         *string `gorm:"type:text"`

	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	Status    Status  `gorm:"type:text;not null;default:'pending'"`
	Attempts  int     `gorm:"not null;default:0"`
	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Seq is assigned by the store on insert and breaks created_at ties.
	Seq int64 `gorm:"column:seq;->;-:migration"`
}

// HasExplicitContent reports whether the producer supplied subject and body.
func (j *Job) HasExplicitContent() bool {
	return j.Subject != "" && j.HTML != ""
}

func (j *Job) clone() *Job {
	c := *j
	if j.Payload != nil {
		c.Payload = append(datatypes.JSON(nil), j.Payload...)
	}
	if j.UserRef != nil {
		ref := *j.UserRef
		c.UserRef = &ref
	}
	if j.LastError != nil {
		msg := *j.LastError
		c.LastError = &msg
	}
	return &c
}
