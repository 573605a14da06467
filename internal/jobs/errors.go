package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("jobs: job not found")
	ErrNotProcessing = errors.New("jobs: job not processing")
	ErrUnknownFamily = errors.New("jobs: unknown family")
)

// ValidationError rejects a job at enqueue time; the job is never stored.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("jobs: invalid job: %s failed %q", e.Field, e.Rule)
}

// RenderError means no subject/body could be produced for the job.
type RenderError struct {
	Kind Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// GenerationError is a PDF failure caused by a required input.
type GenerationError struct {
	Document string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Document, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TransportError wraps a failed mail send.
type TransportError struct {
	To  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.To, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
