package db

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a conditional write finds a different
// stored version than the caller expected.
var ErrVersionConflict = errors.New("version conflict")

// Kind names the entity a lookup failed to find.
type Kind string

const (
	KindOrganization Kind = "organization"
	KindUser         Kind = "user"
	KindSupervisor   Kind = "supervisor"
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Kind Kind
	ID   string
}

// NotFound returns a NotFoundError for the given kind and id.
func NotFound(kind Kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true for any kind.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AsNotFound extracts the NotFoundError from err, if any.
func AsNotFound(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}
