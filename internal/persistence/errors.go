package persistence

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrSlotTaken is returned when another user already holds the requested start time.
	ErrSlotTaken = errors.New("persistence: slot already reserved")
	// ErrActiveReservation is returned when the user still holds a live reservation.
	ErrActiveReservation = errors.New("persistence: user already holds a live reservation")
)

// ConflictError reports a lost race for a slot or a second live reservation.
type ConflictError struct {
	UserID    string
	StartTime time.Time
	Reason    error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("reservation conflict for user %s at %s: %v", e.UserID, e.StartTime.Format(time.RFC3339), e.Reason)
}

// Unwrap exposes ErrSlotTaken or ErrActiveReservation.
func (e *ConflictError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

// StorageError wraps a failure of the underlying substrate.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the substrate error.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStorageError wraps err unless it is nil or already classified.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	var storage *StorageError
	if errors.As(err, &conflict) || errors.As(err, &storage) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
