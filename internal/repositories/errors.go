package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrUsernameTaken is the conflict raised by the unique username index.
	ErrUsernameTaken = fmt.Errorf("username taken: %w", ErrConflict)
	// ErrEmailTaken is the conflict raised by the unique email index.
	ErrEmailTaken = fmt.Errorf("email taken: %w", ErrConflict)
	// ErrStaleToken indicates a compare-and-swap on the refresh token slot lost.
	ErrStaleToken = errors.New("refresh token no longer current")
)
