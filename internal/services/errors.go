package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrInvalidID  = errors.New("invalid id")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

// DomainError pairs one of the sentinel kinds with the message shown to the caller.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// parseRecordID treats a blank or "undefined" id as malformed input and any
// other unparsable value as a record that cannot exist.
func parseRecordID(raw, resource string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "undefined" || trimmed == "null" {
		return uuid.Nil, newError(ErrInvalidID, "invalid %s id", resource)
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, newError(ErrNotFound, "%s not found", resource)
	}
	return id, nil
}

// parseReferenceID is used for ids that name another entity in a request,
// where a malformed value is always a client error.
func parseReferenceID(raw, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, newError(ErrInvalidID, "invalid %s id", resource)
	}
	return id, nil
}
