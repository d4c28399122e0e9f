package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotEmpty is returned by a Store when a slot holds no value.
	ErrSlotEmpty = errors.New("session slot empty")

	// ErrEmptyCredential is returned when establishing a session with a blank credential.
	ErrEmptyCredential = errors.New("empty credential")

	// ErrUnknownSlot is returned for slot names other than the two fixed ones.
	ErrUnknownSlot = errors.New("unknown session slot")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")

	// ErrCorruptFile is returned when a file store cannot decode its contents.
	ErrCorruptFile = errors.New("session file corrupt")
)

// StoreError records which backend operation failed.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Backend: backend, Op: op, Err: err}
}
