package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("submission not found")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrInvalidState       = errors.New("invalid state")
	ErrNoActiveDiscussion = errors.New("no active discussion")
	ErrEmptyMessage       = errors.New("empty message")
	ErrArtifactMissing    = errors.New("artifact missing")
)

// StateError is returned when a transition is requested from the wrong state.
type StateError struct {
	SubmissionID int64
	State        State
	Want         State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("submission %d: cannot move %s -> %s", e.SubmissionID, e.State, e.Want)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }
