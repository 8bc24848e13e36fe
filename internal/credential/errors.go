package credential

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means no credential has ever been stored.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthExpired means the provider rejected the refresh token and the
	// interactive flow has to be repeated.
	ErrAuthExpired = errors.New("refresh token rejected")
)

// AuthError is a failed exchange or a provider failure that is not a
// rejection of the refresh token.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StorageError means the credential store could not be read, decoded or
// written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
