package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by every domain package. Callers match them with errors.Is.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrPersistence     = errors.New("persistence failure")
	ErrCollaborator    = errors.New("collaborator failure")
)

// CollaboratorError reports one failed call to an external collaborator
// (role mutation, post publish/update). The core's own state is already
// consistent when one of these is returned, so the call can be retried alone.
type CollaboratorError struct {
	Op     string // e.g. "grant_role", "revoke_role", "create_post"
	Target string // role id, post id, ...
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is makes every CollaboratorError match ErrCollaborator.
func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// NewCollaboratorError wraps err for op on target.
func NewCollaboratorError(op, target string, err error) error {
	return &CollaboratorError{Op: op, Target: target, Err: err}
}

// PersistenceError wraps a failed durable write.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
