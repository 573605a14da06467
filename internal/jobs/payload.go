package jobs

import (
	"encoding/json"
	"time"
)

// EventSnapshot is the denormalized event data copied into a job.
// DateTime is RFC3339 and may be empty when the event has no date yet.
type EventSnapshot struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title" validate:"required"`
	DateTime    string `json:"dateTime,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// StartsAt parses DateTime. ok is false when the date is missing or malformed.
func (e EventSnapshot) StartsAt() (t time.Time, ok bool) {
	if e.DateTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, e.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type RegistrationPayload struct {
	UserName   string        `json:"userName,omitempty"`
	UserEmail  string        `json:"userEmail,omitempty"`
	UserPhone  string        `json:"userPhone,omitempty"`
	Event      EventSnapshot `json:"event"`
	TokenID    string        `json:"tokenId" validate:"required"`
	TicketLink string        `json:"ticketLink,omitempty" validate:"omitempty,url"`
}

type NewEventPayload struct {
	UserName  string        `json:"userName,omitempty"`
	Event     EventSnapshot `json:"event"`
	EventLink string        `json:"eventLink,omitempty" validate:"omitempty,url"`
}

type ExternalEventAlertPayload struct {
	UserName     string        `json:"userName,omitempty"`
	Event        EventSnapshot `json:"event"`
	ExternalLink string        `json:"externalLink,omitempty" validate:"omitempty,url"`
}

type CertificatePayload struct {
	UserName  string        `json:"userName,omitempty"`
	UserEmail string        `json:"userEmail" validate:"required,email"`
	Event     EventSnapshot `json:"event"`
	IssuedAt  string        `json:"issuedAt,omitempty"`
}

// payloadFor returns an empty payload value for the kind, or nil when the
// kind is not one the renderer knows.
func payloadFor(kind Kind) any {
	switch kind {
	case KindRegistration:
		return &RegistrationPayload{}
	case KindNewEvent:
		return &NewEventPayload{}
	case KindExternalEventAlert:
		return &ExternalEventAlertPayload{}
	case KindCertificate:
		return &CertificatePayload{}
	}
	return nil
}

// Decode unmarshals the job payload into dst.
func (j *Job) Decode(dst any) error {
	if len(j.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(j.Payload, dst)
}
