package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrUnsupportedKind is returned when a document is neither a PDF nor a DOCX.
	ErrUnsupportedKind = errors.New("unsupported document kind")
	// ErrInvalidTransition is returned when a status change is not an edge of the job state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTerminal is returned when a job in a terminal state receives an update.
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrInFlight is returned when an operation is not allowed on the in-flight job.
	ErrInFlight = errors.New("job is in flight")
)
