package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConflict          = errors.New("account already exists")
	ErrNotFound          = errors.New("account not found")
	ErrUnauthorized      = errors.New("invalid credentials")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidCredential = errors.New("current password is incorrect")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDisallowedField   = errors.New("field not allowed")
)

// StoreError wraps failures of the underlying store that have no more
// specific meaning (connectivity, timeouts, unmapped constraints).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
