package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// CertificateRef identifies the subject of a certificate job. UserRef is nil
// for guests.
type CertificateRef struct {
	RegistrationRef string
	EventRef        string
	UserRef         *string
}

// NewEmailJob builds a pending email job with a validated payload snapshot.
func NewEmailJob(kind Kind, to string, payload any) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Rule: "json"}
	}
	job := &Job{
		Family:  FamilyEmail,
		Kind:    kind,
		To:      strings.TrimSpace(to),
		Payload: datatypes.JSON(raw),
		Status:  StatusPending,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// NewCertificateJob builds a pending certificate job.
func NewCertificateJob(ref CertificateRef, payload CertificatePayload) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Rule: "json"}
	}
	job := &Job{
		Family:          FamilyCertificate,
		Kind:            KindCertificate,
		To:              strings.TrimSpace(payload.UserEmail),
		RegistrationRef: strings.TrimSpace(ref.RegistrationRef),
		EventRef:        strings.TrimSpace(ref.EventRef),
		UserRef:         ref.UserRef,
		Payload:         datatypes.JSON(raw),
		Status:          StatusPending,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks the fields required by the job's family and kind. Email
// jobs of a kind the renderer does not know are accepted; they either carry
// explicit content or fail at render time.
func (j *Job) Validate() error {
	switch j.Family {
	case FamilyEmail:
		if err := checkVar("to", j.To, "required,email"); err != nil {
			return err
		}
		if strings.TrimSpace(string(j.Kind)) == "" {
			return &ValidationError{Field: "kind", Rule: "required"}
		}
		if j.Kind == KindCertificate {
			return &ValidationError{Field: "kind", Rule: "email_kind"}
		}
	case FamilyCertificate:
		if j.Kind != KindCertificate {
			return &ValidationError{Field: "kind", Rule: "eq=CERTIFICATE"}
		}
		if err := checkVar("eventRef", j.EventRef, "required"); err != nil {
			return err
		}
		if err := checkVar("registrationRef", j.RegistrationRef, "required"); err != nil {
			return err
		}
	default:
		return &ValidationError{Field: "family", Rule: "oneof=email certificate"}
	}

	dst := payloadFor(j.Kind)
	if dst == nil {
		return nil
	}
	if err := j.Decode(dst); err != nil {
		return &ValidationError{Field: "payload", Rule: "json"}
	}
	return checkStruct(dst)
}

func checkVar(field string, value any, tag string) error {
	err := getValidator().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: field, Rule: fieldErrs[0].Tag()}
	}
	return &ValidationError{Field: field, Rule: tag}
}

func checkStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: "payload." + trimRoot(fe.Namespace()), Rule: fe.Tag()}
	}
	return &ValidationError{Field: "payload", Rule: err.Error()}
}

// trimRoot drops the struct type name validator puts in front of namespaces.
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
